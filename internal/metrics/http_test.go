package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouteLabel(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/legacy", func(w http.ResponseWriter, r *http.Request) {})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		got = routeLabel(r)
	})

	tests := []struct {
		path string
		want string
	}{
		{"/api/events/01J", "/api/events/{id}"},
		{"/api/legacy", "/api/legacy"},
		{"/nope", "unmatched"},
	}
	for _, tt := range tests {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
		if got != tt.want {
			t.Errorf("routeLabel(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
