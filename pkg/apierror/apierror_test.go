package apierror_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openctemio/console/pkg/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	apierror.WriteSuccess(rec, map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 200, body["code"])
	assert.Equal(t, "success", body["message"])
	assert.EqualValues(t, 2, body["data"].(map[string]any)["count"])
}

func TestWriteSuccess_NoData(t *testing.T) {
	rec := httptest.NewRecorder()
	apierror.WriteSuccess(rec, nil)

	body := decode(t, rec)
	assert.NotContains(t, body, "data")
}

func TestDependencyUnsatisfied(t *testing.T) {
	rec := httptest.NewRecorder()
	apierror.DependencyUnsatisfied("billing", []string{"accounts"}).WriteJSON(rec)

	assert.Equal(t, http.StatusFailedDependency, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 424, body["code"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "DEPENDENCY_UNSATISFIED", data["error"])
	assert.Equal(t, []any{"accounts"}, data["missing"])
}

func TestInternalError_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	apiErr := apierror.InternalError(cause)

	rec := httptest.NewRecorder()
	apiErr.WriteJSON(rec)

	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.ErrorIs(t, apiErr, cause)
	assert.True(t, apierror.IsAPIError(apiErr))
}
