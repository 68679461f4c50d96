package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/api/pagination"
	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/settings"
)

// SettingsStore reads and writes the site-wide settings.
type SettingsStore interface {
	Get(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, actor string, in settings.UpdateInput) (settings.Settings, error)
}

// BackupStore schedules and lists database snapshots.
type BackupStore interface {
	Request(ctx context.Context, createdBy string) (*backups.Backup, error)
	List(ctx context.Context, limit, offset int) ([]*backups.Backup, int, error)
	Restore(ctx context.Context, id string) (*backups.Backup, error)
	Dir() string
}

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminSystemHandler serves the owner-only system endpoints, system health
// and the moderation placeholders.
type AdminSystemHandler struct {
	settings    SettingsStore
	backups     BackupStore
	db          Pinger
	auditLogger *audit.Logger
	env         string
}

func NewAdminSystemHandler(settingsStore SettingsStore, backupStore BackupStore, db Pinger, auditLogger *audit.Logger, env string) *AdminSystemHandler {
	return &AdminSystemHandler{
		settings:    settingsStore,
		backups:     backupStore,
		db:          db,
		auditLogger: auditLogger,
		env:         env,
	}
}

// ComponentHealth is one line of the system health report.
type ComponentHealth struct {
	Status string `json:"status"`
	Usage  string `json:"usage"`
}

type SystemHealth struct {
	Database   ComponentHealth `json:"database"`
	Storage    ComponentHealth `json:"storage"`
	Memory     ComponentHealth `json:"memory"`
	Goroutines ComponentHealth `json:"goroutines"`
}

// SystemHealth handles GET /api/admin/dashboard/system-health
func (h *AdminSystemHandler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	out := SystemHealth{}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	start := time.Now()
	if h.db == nil {
		out.Database = ComponentHealth{Status: "unhealthy", Usage: "not configured"}
	} else if err := h.db.Ping(ctx); err != nil {
		out.Database = ComponentHealth{Status: "unhealthy", Usage: "unreachable"}
	} else {
		out.Database = ComponentHealth{Status: "healthy", Usage: fmt.Sprintf("%dms response", time.Since(start).Milliseconds())}
	}

	if h.backups == nil {
		out.Storage = ComponentHealth{Status: "unknown", Usage: "backups not configured"}
	} else if used, err := backups.DirUsage(h.backups.Dir()); err != nil {
		out.Storage = ComponentHealth{Status: "unhealthy", Usage: "backup directory unreadable"}
	} else {
		out.Storage = ComponentHealth{Status: "healthy", Usage: fmt.Sprintf("%s used by backups", humanBytes(used))}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	out.Memory = ComponentHealth{Status: "healthy", Usage: fmt.Sprintf("%dMB used", mem.HeapAlloc/1024/1024)}
	out.Goroutines = ComponentHealth{Status: "healthy", Usage: fmt.Sprintf("%d running", runtime.NumGoroutine())}

	response.OK(w, out)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// GetSettings handles GET /api/admin/settings
func (h *AdminSystemHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.OK(w, s)
}

// UpdateSettings handles PUT /api/admin/settings
func (h *AdminSystemHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in settings.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	s, err := h.settings.Update(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "settings.updated", "settings", "", "success", nil)
	response.Message(w, "Settings updated successfully", s)
}

// CreateBackup handles POST /api/admin/backup/create. The snapshot is
// written by a background job; the response carries the pending record.
func (h *AdminSystemHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.backups.Request(r.Context(), callerID(r))
	if err != nil {
		h.auditLogger.LogFromRequest(r, auditActor(r), "backup.requested", "backup", "", "failure", nil)
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "backup.requested", "backup", b.ID, "success", nil)
	response.Write(w, http.StatusAccepted, response.Envelope{
		Success: true,
		Message: "Backup scheduled",
		Data:    b,
	})
}

// ListBackups handles GET /api/admin/backup/list
func (h *AdminSystemHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r.URL.Query())
	list, total, err := h.backups.List(r.Context(), page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, list, page.Meta(total))
}

// RestoreBackup handles POST /api/admin/backup/restore/{id}. The snapshot is
// validated and the request audited; applying it is left to an operator.
func (h *AdminSystemHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b, err := h.backups.Restore(r.Context(), id)
	if err != nil {
		h.auditLogger.LogFromRequest(r, auditActor(r), "backup.restore_requested", "backup", id, "failure", nil)
		writeError(w, r, err, h.env)
		return
	}
	h.auditLogger.LogFromRequest(r, auditActor(r), "backup.restore_requested", "backup", id, "success", map[string]string{
		"file": b.FileName,
	})
	response.Message(w, "Backup verified. Restore has been recorded for an operator to apply.", b)
}

// Logs handles GET /api/admin/logs
func (h *AdminSystemHandler) Logs(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r.URL.Query())
	entries, total, err := h.auditLogger.List(r.Context(), page.Limit, page.Offset())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	response.Paginated(w, entries, page.Meta(total))
}

// PendingPosts handles GET /api/admin/moderation/posts. Moderation has no
// backing content yet.
func (h *AdminSystemHandler) PendingPosts(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Content moderation feature not fully implemented", []any{})
}

// ApprovePost handles PUT /api/admin/moderation/posts/{id}/approve
func (h *AdminSystemHandler) ApprovePost(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Post approved", nil)
}

// RejectPost handles PUT /api/admin/moderation/posts/{id}/reject
func (h *AdminSystemHandler) RejectPost(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Post rejected", nil)
}

// Reports handles GET /api/admin/moderation/reports
func (h *AdminSystemHandler) Reports(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Reports feature not fully implemented", []any{})
}

// ResolveReport handles PUT /api/admin/moderation/reports/{id}/resolve
func (h *AdminSystemHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	response.Message(w, "Report resolved", nil)
}
