package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/settings"
)

type fakeSettings struct {
	current settings.Settings
	actor   string
}

func (f *fakeSettings) Get(context.Context) (settings.Settings, error) {
	return f.current, nil
}

func (f *fakeSettings) Update(_ context.Context, actor string, in settings.UpdateInput) (settings.Settings, error) {
	f.actor = actor
	if in.MaintenanceMode != nil {
		f.current.MaintenanceMode = *in.MaintenanceMode
	}
	f.current.UpdatedBy = actor
	return f.current, nil
}

type fakeBackups struct {
	dir     string
	records map[string]*backups.Backup
}

func (f *fakeBackups) Request(_ context.Context, createdBy string) (*backups.Backup, error) {
	b := &backups.Backup{ID: "bk-1", Status: backups.StatusPending, CreatedBy: createdBy, CreatedAt: time.Now()}
	f.records[b.ID] = b
	return b, nil
}

func (f *fakeBackups) List(context.Context, int, int) ([]*backups.Backup, int, error) {
	out := make([]*backups.Backup, 0, len(f.records))
	for _, b := range f.records {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (f *fakeBackups) Restore(_ context.Context, id string) (*backups.Backup, error) {
	b, ok := f.records[id]
	if !ok {
		return nil, backups.ErrBackupNotFound
	}
	if b.Status != backups.StatusCompleted {
		return nil, backups.ErrNotRestorable
	}
	return b, nil
}

func (f *fakeBackups) Dir() string { return f.dir }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newSystemFixture(t *testing.T) (*AdminSystemHandler, *fakeSettings, *fakeBackups, *auditRecorder) {
	t.Helper()
	s := &fakeSettings{current: settings.Defaults()}
	b := &fakeBackups{dir: t.TempDir(), records: map[string]*backups.Backup{}}
	auditLogger, records := newAuditLogger()
	h := NewAdminSystemHandler(s, b, pingFunc(func(context.Context) error { return nil }), auditLogger, "test")
	return h, s, b, records
}

func TestAdminSystemHandler_CreateBackup(t *testing.T) {
	h, _, b, records := newSystemFixture(t)

	rec, env := perform(t, "POST /api/admin/backup/create", h.CreateBackup, http.MethodPost, "/api/admin/backup/create", nil, asAdmin("owner-1", auth.RoleOwner))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Backup scheduled", env.Message)
	var got backups.Backup
	decodeData(t, env, &got)
	assert.Equal(t, backups.StatusPending, got.Status)
	assert.Equal(t, "owner-1", b.records["bk-1"].CreatedBy)
	assert.Equal(t, []string{"backup.requested:success"}, records.actions())
}

func TestAdminSystemHandler_RestoreBackup(t *testing.T) {
	h, _, b, records := newSystemFixture(t)
	owner := asAdmin("owner-1", auth.RoleOwner)
	const pattern = "POST /api/admin/backup/restore/{id}"

	b.records["pending"] = &backups.Backup{ID: "pending", Status: backups.StatusPending}
	b.records["done"] = &backups.Backup{ID: "done", Status: backups.StatusCompleted, FileName: "backup-done.json.gz"}

	rec, env := perform(t, pattern, h.RestoreBackup, http.MethodPost, "/api/admin/backup/restore/pending", nil, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Backup is not complete", env.Message)

	rec, _ = perform(t, pattern, h.RestoreBackup, http.MethodPost, "/api/admin/backup/restore/missing", nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = perform(t, pattern, h.RestoreBackup, http.MethodPost, "/api/admin/backup/restore/done", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		"backup.restore_requested:failure",
		"backup.restore_requested:failure",
		"backup.restore_requested:success",
	}, records.actions())
	assert.Equal(t, "backup-done.json.gz", records.entries[2].Details["file"])
}

func TestAdminSystemHandler_UpdateSettings(t *testing.T) {
	h, s, _, records := newSystemFixture(t)

	rec, env := perform(t, "PUT /api/admin/settings", h.UpdateSettings, http.MethodPut, "/api/admin/settings",
		map[string]any{"maintenanceMode": true}, asAdmin("owner-1", auth.RoleOwner))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Settings updated successfully", env.Message)
	assert.True(t, s.current.MaintenanceMode)
	assert.Equal(t, "owner-1", s.actor)
	assert.Equal(t, []string{"settings.updated:success"}, records.actions())
}

func TestAdminSystemHandler_Logs(t *testing.T) {
	h, _, _, records := newSystemFixture(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, records.Insert(context.Background(), records.entryFor("admin.login")))
	}

	rec, env := perform(t, "GET /api/admin/logs", h.Logs, http.MethodGet, "/api/admin/logs?limit=2", nil, asAdmin("owner-1", auth.RoleOwner))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 3, env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.Pages)
}

func TestAdminSystemHandler_SystemHealth(t *testing.T) {
	h, _, b, _ := newSystemFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(b.dir, "backup-1.json.gz"), make([]byte, 2048), 0o600))

	rec, env := perform(t, "GET /api/admin/dashboard/system-health", h.SystemHealth, http.MethodGet, "/api/admin/dashboard/system-health", nil, asAdmin("admin-1", auth.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	var report SystemHealth
	decodeData(t, env, &report)
	assert.Equal(t, "healthy", report.Database.Status)
	assert.Equal(t, "2.0KB used by backups", report.Storage.Usage)

	down := NewAdminSystemHandler(nil, nil, pingFunc(func(context.Context) error { return errors.New("refused") }), nil, "test")
	_, env = perform(t, "GET /api/admin/dashboard/system-health", down.SystemHealth, http.MethodGet, "/api/admin/dashboard/system-health", nil, asAdmin("admin-1", auth.RoleUser))
	decodeData(t, env, &report)
	assert.Equal(t, "unhealthy", report.Database.Status)
	assert.Equal(t, "unknown", report.Storage.Status)
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512B",
		2048:            "2.0KB",
		5 * 1024 * 1024: "5.0MB",
	}
	for in, want := range tests {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestAdminSystemHandler_ModerationPlaceholders(t *testing.T) {
	h, _, _, _ := newSystemFixture(t)
	_, env := perform(t, "GET /api/admin/moderation/posts", h.PendingPosts, http.MethodGet, "/api/admin/moderation/posts", nil, asAdmin("admin-1", auth.RoleUser))
	assert.Equal(t, "Content moderation feature not fully implemented", env.Message)
	assert.JSONEq(t, `[]`, string(env.Data))
}
