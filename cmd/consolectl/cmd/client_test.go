package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Post(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"code":200,"message":"success","data":{"count":3}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "tok", false)
	data, err := client.Post(context.Background(), "/api/v1/modules/sort", map[string]any{"module_ids": []int{1, 2}})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/v1/modules/sort", gotPath)
	assert.Contains(t, gotBody, "module_ids")
	assert.JSONEq(t, `{"count":3}`, string(data))
}

func TestClient_PostNilBodySendsObject(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"code":200,"message":"success","data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", false).Post(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		wantMissing []string
	}{
		{
			name:        "dependency envelope",
			status:      http.StatusFailedDependency,
			body:        `{"code":424,"message":"module crm has unmet dependencies","data":{"error":"DEPENDENCY_UNSATISFIED","missing":["accounts"]}}`,
			wantCode:    "DEPENDENCY_UNSATISFIED",
			wantMessage: "module crm has unmet dependencies (missing: accounts)",
			wantMissing: []string{"accounts"},
		},
		{
			name:        "core module",
			status:      http.StatusForbidden,
			body:        `{"code":403,"message":"Core modules cannot be uninstalled","data":{"error":"CORE_MODULE_PROTECTED"}}`,
			wantCode:    "CORE_MODULE_PROTECTED",
			wantMessage: "Core modules cannot be uninstalled",
		},
		{
			name:        "unauthorized without body",
			status:      http.StatusUnauthorized,
			body:        ``,
			wantMessage: "unauthorized: invalid or missing token",
		},
		{
			name:        "unknown status without body",
			status:      http.StatusBadGateway,
			body:        `<html>`,
			wantMessage: "API error: 502 Bad Gateway",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "tok", false).Post(context.Background(), "/x", nil)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMissing, apiErr.Missing)
			assert.Equal(t, tt.wantMessage, err.Error())
		})
	}
}
