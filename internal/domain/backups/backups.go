// Package backups records JSON snapshots of the application data and writes
// them to a local directory.
package backups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

var (
	ErrBackupNotFound = errors.New("backup not found")
	ErrNotRestorable  = errors.New("backup is not complete")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Backup struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName,omitempty"`
	SizeBytes   int64      `json:"sizeBytes"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Repository interface {
	Create(ctx context.Context, b *Backup) error
	GetByID(ctx context.Context, id string) (*Backup, error)
	List(ctx context.Context, limit, offset int) ([]*Backup, int, error)
	Complete(ctx context.Context, id, fileName string, size int64, at time.Time) error
	Fail(ctx context.Context, id, reason string) error
}

// Enqueuer schedules the snapshot for a pending backup record.
type Enqueuer interface {
	EnqueueBackup(ctx context.Context, backupID string) error
}

// Source reads everything a snapshot contains.
type Source interface {
	ListAllUsers(ctx context.Context) ([]*users.User, error)
	ListAllEvents(ctx context.Context) ([]*events.Event, error)
	ListAdmins(ctx context.Context) ([]*admins.AdminUser, error)
}

// Snapshot is the file format. Password hashes never reach it because the
// account types do not serialize them.
type Snapshot struct {
	BackupID  string              `json:"backupId"`
	CreatedAt time.Time           `json:"createdAt"`
	Users     []*users.User       `json:"users"`
	Events    []*events.Event     `json:"events"`
	Admins    []*admins.AdminUser `json:"admins"`
}

type Service struct {
	repo     Repository
	enqueuer Enqueuer
	source   Source
	dir      string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, enqueuer Enqueuer, source Source, dir string, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		source:   source,
		dir:      dir,
		logger:   logger.With().Str("component", "backups").Logger(),
		now:      time.Now,
	}
}

// Dir is where snapshot files are written.
func (s *Service) Dir() string { return s.dir }

// Request records a pending backup and schedules its snapshot.
func (s *Service) Request(ctx context.Context, createdBy string) (*Backup, error) {
	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate backup id: %w", err)
	}
	b := &Backup{
		ID:        id,
		Status:    StatusPending,
		CreatedBy: createdBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	if err := s.enqueuer.EnqueueBackup(ctx, b.ID); err != nil {
		_ = s.repo.Fail(ctx, b.ID, "could not schedule snapshot")
		return nil, fmt.Errorf("enqueue backup: %w", err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Backup, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Restore checks that id names a completed snapshot whose file still exists.
// Applying the snapshot is an operator task; this only validates it.
func (s *Service) Restore(ctx context.Context, id string) (*Backup, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrBackupNotFound
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusCompleted {
		return nil, ErrNotRestorable
	}
	if _, err := os.Stat(filepath.Join(s.dir, b.FileName)); err != nil {
		return nil, fmt.Errorf("%w: snapshot file missing", ErrNotRestorable)
	}
	return b, nil
}

// Write produces the snapshot file for a pending backup and marks the record
// completed or failed.
func (s *Service) Write(ctx context.Context, id string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status == StatusCompleted {
		return nil
	}

	fileName, size, err := s.write(ctx, b)
	if err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("backup failed")
		if failErr := s.repo.Fail(ctx, id, err.Error()); failErr != nil {
			return fmt.Errorf("record backup failure: %w", failErr)
		}
		return err
	}

	if err := s.repo.Complete(ctx, id, fileName, size, s.now().UTC()); err != nil {
		return fmt.Errorf("complete backup: %w", err)
	}
	s.logger.Info().Str("backup_id", id).Str("file", fileName).Int64("size_bytes", size).Msg("backup written")
	return nil
}

func (s *Service) write(ctx context.Context, b *Backup) (string, int64, error) {
	snap := Snapshot{BackupID: b.ID, CreatedAt: s.now().UTC()}
	var err error
	if snap.Users, err = s.source.ListAllUsers(ctx); err != nil {
		return "", 0, fmt.Errorf("read users: %w", err)
	}
	if snap.Events, err = s.source.ListAllEvents(ctx); err != nil {
		return "", 0, fmt.Errorf("read events: %w", err)
	}
	if snap.Admins, err = s.source.ListAdmins(ctx); err != nil {
		return "", 0, fmt.Errorf("read admins: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create backup dir: %w", err)
	}

	fileName := fmt.Sprintf("backup-%s.json", b.ID)
	tmp := filepath.Join(s.dir, fileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", 0, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, fileName)); err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("finalize snapshot: %w", err)
	}
	return fileName, int64(len(data)), nil
}

// DirUsage sums the size of the files in the backup directory. A missing
// directory counts as empty.
func DirUsage(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
