package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/openctemio/console/pkg/apierror"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/jwt"
	"github.com/openctemio/console/pkg/logger"
)

const testSecret = "test-secret-with-enough-length-0123456789"

func decodeEnvelope(t *testing.T, body io.Reader) apierror.Envelope {
	t.Helper()
	var env apierror.Envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Request-ID", "req-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "req-1", seen)
		assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.NewNop(), true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, http.StatusInternalServerError, env.Code)
}

func TestAuth(t *testing.T) {
	gen := jwt.NewGenerator(jwt.TokenConfig{Secret: testSecret, TTL: time.Minute})
	valid, _, err := gen.Generate(7, "operator")
	require.NoError(t, err)
	badType, _, err := gen.Generate(7, "Not Valid")
	require.NoError(t, err)
	foreign, _, err := jwt.NewGenerator(jwt.TokenConfig{Secret: "another-secret"}).Generate(7, "operator")
	require.NoError(t, err)

	var (
		gotID   shared.ID
		gotType shared.AccountType
	)
	h := Auth(jwt.NewVerifier(testSecret, ""), logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetAccountID(r.Context())
		gotType = GetAccountType(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"malformed account type", "Bearer " + badType, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotType = 0, ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/modules/list", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, shared.ID(7), gotID)
				assert.Equal(t, shared.AccountTypeOperator, gotType)
			} else {
				assert.True(t, gotID.IsZero())
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("much too long for the limit")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecompress(t *testing.T) {
	payload := []byte(`{"module_id":1}`)
	var got []byte
	h := Decompress(DefaultDecompressConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("zstd", func(t *testing.T) {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := enc.EncodeAll(payload, nil)
		require.NoError(t, enc.Close())

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(compressed))
		req.Header.Set("Content-Encoding", "zstd")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, got)
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
		req.Header.Set("Content-Encoding", "br")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("corrupt body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not zstd"))
		req.Header.Set("Content-Encoding", "zstd")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("test", rate.Every(time.Hour), 2, time.Minute, ClientIPKey, logger.NewNop())
	defer rl.Stop()

	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"), "buckets are per client")
}

func TestAccountKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, AccountKey(req))

	req = req.WithContext(WithAccount(req.Context(), 42, shared.AccountTypeOperator))
	assert.Equal(t, "account:42", AccountKey(req))
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
