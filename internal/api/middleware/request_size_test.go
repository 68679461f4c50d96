package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestSize(t *testing.T) {
	var readErr error
	handler := RequestSize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("within limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"a":1}`))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if readErr != nil {
			t.Errorf("unexpected error: %v", readErr)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(strings.Repeat("x", 64)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		var maxErr *http.MaxBytesError
		if !errors.As(readErr, &maxErr) {
			t.Errorf("expected MaxBytesError, got %v", readErr)
		}
	})
}

func TestRequestSizeDefault(t *testing.T) {
	var body []byte
	handler := RequestSize(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 4096)))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(body) != 4096 {
		t.Errorf("expected full body under default limit, got %d bytes", len(body))
	}
}
