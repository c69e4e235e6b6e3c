package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EINVALIDSTATE, http.StatusConflict},
		{domain.EUNAVAILABLE, http.StatusBadGateway},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"bogus", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response missing error object")
	return errObj
}

func TestErrorResponse_DomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/threads/abc", nil)

	ErrorResponse(rec, req, discardLogger(), domain.NotFound("store.get", "thread", "abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	errObj := decodeError(t, rec)
	assert.Equal(t, domain.ENOTFOUND, errObj["code"])
}

func TestErrorResponse_StateError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/threads/abc/send", nil)

	err := domain.InvalidState("workflow.send", "sent", "send")
	ErrorResponse(rec, req, discardLogger(), err)

	assert.Equal(t, http.StatusConflict, rec.Code)

	errObj := decodeError(t, rec)
	assert.Equal(t, domain.EINVALIDSTATE, errObj["code"])
	assert.Equal(t, "sent", errObj["current_state"])
	assert.Equal(t, "send", errObj["attempted"])
}

func TestErrorResponse_ValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/threads", nil)

	ve := domain.NewValidationError("workflow.start", "purpose", "purpose is required")
	ve = domain.AddFieldError(ve, "recipients", "at least one recipient is required")
	ErrorResponse(rec, req, discardLogger(), ve)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errObj := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, errObj["code"])
	fields, ok := errObj["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "purpose")
	assert.Contains(t, fields, "recipients")
}

func TestErrorResponse_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/threads", nil)

	ErrorResponse(rec, req, discardLogger(), errors.New("something broke"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	errObj := decodeError(t, rec)
	assert.Equal(t, domain.EINTERNAL, errObj["code"])
	// Internal detail is not leaked to the client.
	assert.NotContains(t, errObj["message"], "something broke")
}
