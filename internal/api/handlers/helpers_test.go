package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/api/middleware"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

// envelope mirrors response.Envelope with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Pagination *struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func asUser(id string) *middleware.Principal {
	return &middleware.Principal{ID: id, Type: auth.TypeUser}
}

func asAdmin(id string, role auth.Role) *middleware.Principal {
	return &middleware.Principal{ID: id, Type: auth.TypeAdmin, Role: role, Permissions: auth.PermissionsForRole(role)}
}

// perform routes one request through a mux registered with pattern so path
// values resolve as in production.
func perform(t *testing.T, pattern string, h http.HandlerFunc, method, target string, body any, p *middleware.Principal) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if p != nil {
		claims := &auth.Claims{Type: p.Type, Role: string(p.Role)}
		claims.Subject = p.ID
		req = req.WithContext(middleware.WithPrincipal(req.Context(), p, claims))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// auditRecorder is an in-memory audit.Store.
type auditRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *auditRecorder) Insert(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditRecorder) List(_ context.Context, limit, offset int) ([]audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.entries) {
		return []audit.Entry{}, len(s.entries), nil
	}
	end := min(offset+limit, len(s.entries))
	return append([]audit.Entry(nil), s.entries[offset:end]...), len(s.entries), nil
}

func (s *auditRecorder) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action+":"+e.Status)
	}
	return out
}

func newAuditLogger() (*audit.Logger, *auditRecorder) {
	store := &auditRecorder{}
	return audit.NewLogger(zerolog.Nop(), store), store
}

func (s *auditRecorder) entryFor(action string) audit.Entry {
	return audit.Entry{Action: action, Actor: "owner-1", ActorType: auth.TypeAdmin, Status: "success"}
}
