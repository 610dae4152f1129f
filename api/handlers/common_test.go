package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/roundtable/types"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	WriteSuccess(w, r, map[string]int{"n": 1})

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Nil(t, resp.Error)
}

func TestWriteError_MapsCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   types.ErrorCode
	}{
		{types.NewError(types.ErrInvalidID, "invalid meeting id"), http.StatusBadRequest, types.ErrInvalidID},
		{types.NewError(types.ErrMeetingNotFound, "meeting not found"), http.StatusNotFound, types.ErrMeetingNotFound},
		{types.NewError(types.ErrMeetingNotActive, "not active"), http.StatusConflict, types.ErrMeetingNotActive},
		{types.NewError(types.ErrModelRateLimited, "busy").WithRetryable(true), http.StatusTooManyRequests, types.ErrModelRateLimited},
		{types.NewError(types.ErrModelTimeout, "slow"), http.StatusGatewayTimeout, types.ErrModelTimeout},
		{types.NewError(types.ErrEmptyResponse, "empty"), http.StatusBadGateway, types.ErrEmptyResponse},
		{types.NewError(types.ErrCommitFailed, "failed"), http.StatusInternalServerError, types.ErrCommitFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, httptest.NewRequest(http.MethodPost, "/x", nil), tt.err, zaptest.NewLogger(t))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestWriteError_HidesUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodGet, "/x", nil),
		errors.New("pq: password authentication failed for user roundtable"), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "password")
}

func TestDecodeJSONBody(t *testing.T) {
	type body struct {
		Provider string `json:"provider"`
	}

	var b body
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"provider":"openai"}`))
	require.NoError(t, DecodeJSONBody(r, &b, false))
	assert.Equal(t, "openai", b.Provider)

	r = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	assert.NoError(t, DecodeJSONBody(r, &b, true))
	assert.Error(t, DecodeJSONBody(r, &b, false))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	err := DecodeJSONBody(r, &b, true)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("x"))

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Same(t, rec, rw.Unwrap())
}
