package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureID(t *testing.T, header string) (ctxID, respID string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get("X-Request-ID")
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	ctxID, respID := captureID(t, "")
	require.NotEmpty(t, ctxID)
	assert.Equal(t, ctxID, respID)
}

func TestRequestID_PreservesValidID(t *testing.T) {
	ctxID, respID := captureID(t, "custom-id-123")
	assert.Equal(t, "custom-id-123", ctxID)
	assert.Equal(t, "custom-id-123", respID)
}

func TestRequestID_ReplacesInvalidID(t *testing.T) {
	for _, bad := range []string{"has spaces", "line\nbreak", strings.Repeat("a", 200)} {
		ctxID, _ := captureID(t, bad)
		assert.NotEqual(t, bad, ctxID)
		assert.Len(t, ctxID, 36)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
