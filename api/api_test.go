package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusBadRequest, "column not found")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"success": false, "error": "column not found"}, body)
}

func TestRespondWithPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithPayload(rec, true, "", []string{"a"})
	assert.JSONEq(t, `{"success":true,"rows":["a"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	RespondWithResult(rec, false, "nope")
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, rec.Body.String())
}

func TestMiddleware(t *testing.T) {
	h := RequestLogger(Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/recon/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
