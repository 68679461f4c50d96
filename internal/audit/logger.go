package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	ID           int64             `json:"id,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	ActorType    string            `json:"actor_type"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID   string
	Type string // "admin" or "user"
}

// Store persists entries so owners can page through them.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)
}

// Logger writes audit entries to the application log and, when a Store is
// configured, to the audit_log table.
type Logger struct {
	output zerolog.Logger
	store  Store
}

// NewLogger creates an audit logger. store may be nil, and a nil *Logger
// discards entries.
func NewLogger(output zerolog.Logger, store Store) *Logger {
	return &Logger{
		output: output.With().Str("component", "audit").Logger(),
		store:  store,
	}
}

// Log writes an entry. Persistence failures are logged, never returned, so an
// audit write cannot fail the request it describes.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.output.Info().Interface("audit", entry).Msg(entry.Action)

	if l.store == nil {
		return
	}
	if err := l.store.Insert(context.WithoutCancel(ctx), entry); err != nil {
		l.output.Error().Err(err).Str("action", entry.Action).Msg("persist audit entry")
	}
}

// LogFromRequest records an action taken through an HTTP request, taking the
// client address from the request.
func (l *Logger) LogFromRequest(r *http.Request, actor Actor, action, resourceType, resourceID, status string, details map[string]string) {
	l.Log(r.Context(), Entry{
		Action:       action,
		Actor:        actor.ID,
		ActorType:    actor.Type,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    extractClientIP(r),
		Status:       status,
		Details:      details,
	})
}

// List pages through persisted entries, newest first.
func (l *Logger) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if l == nil || l.store == nil {
		return []Entry{}, 0, nil
	}
	return l.store.List(ctx, limit, offset)
}

// extractClientIP gets the client IP from proxy headers or RemoteAddr.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type contextKey string

const auditLoggerKey contextKey = "auditLogger"

// WithLogger adds an audit logger to the request context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, auditLoggerKey, logger)
}

// FromContext retrieves the audit logger from the request context, or a
// logger that discards everything.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(auditLoggerKey).(*Logger); ok {
		return logger
	}
	return NewLogger(zerolog.Nop(), nil)
}
