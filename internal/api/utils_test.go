package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Lat  *float64 `json:"lat"`
	Name string   `json:"name"`
	Ok   *bool    `json:"ok"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"lat": 1.5, "name": "x"}`, ""},
		{"wrong number type", `{"lat": "invalid"}`, "lat: must be of type number"},
		{"wrong bool type", `{"ok": "yes"}`, "ok: must be of type boolean"},
		{"unknown field", `{"lat": 1, "extra": true}`, "extra: unknown field"},
		{"empty body", ``, "body must not be empty"},
		{"broken json", `{"lat": `, "body contains badly-formed JSON"},
		{"syntax error", `{"lat" 1}`, "body contains badly-formed JSON (at character"},
		{"trailing value", `{"lat": 1}{"lat": 2}`, "body must only contain a single JSON value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst sample
			err := DecodeJSON([]byte(tt.body), &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	var dst sample
	err := DecodeJSONBody(w, r, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be larger than")
}

func TestErrorResponse(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/suggest", nil)
	w := httptest.NewRecorder()
	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", "lat: required")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "invalid_request", payload.Error)
	assert.Equal(t, []string{"lat: required"}, payload.Details)
	assert.NotEmpty(t, payload.RequestID)
}

func TestErrorResponse_NoDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ErrorResponse(w, r, http.StatusInternalServerError, "internal_error")

	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestWriteJSONResponse(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	WriteJSONResponse(w, r, http.StatusOK, HealthResponse{OK: true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}
