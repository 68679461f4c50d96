package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/notifications"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
)

const defaultOutboxBatch = 50

type OutboxDispatchArgs struct {
	BatchSize int `json:"batch_size,omitempty"`
}

func (OutboxDispatchArgs) Kind() string { return JobKindOutboxDispatch }

// OutboxDispatchWorker delivers one batch of pending notices.
type OutboxDispatchWorker struct {
	river.WorkerDefaults[OutboxDispatchArgs]
	Dispatcher *notifications.Dispatcher
}

func (w OutboxDispatchWorker) Work(ctx context.Context, job *river.Job[OutboxDispatchArgs]) error {
	if w.Dispatcher == nil {
		return fmt.Errorf("dispatcher not configured")
	}
	batch := job.Args.BatchSize
	if batch <= 0 {
		batch = defaultOutboxBatch
	}
	_, err := w.Dispatcher.Dispatch(ctx, batch)
	return err
}

type OutboxPurgeArgs struct{}

func (OutboxPurgeArgs) Kind() string { return JobKindOutboxPurge }

// OutboxPurgeWorker deletes settled messages older than Retention.
type OutboxPurgeWorker struct {
	river.WorkerDefaults[OutboxPurgeArgs]
	Dispatcher *notifications.Dispatcher
	Retention  time.Duration
	Logger     zerolog.Logger
}

func (w OutboxPurgeWorker) Work(ctx context.Context, job *river.Job[OutboxPurgeArgs]) error {
	if w.Dispatcher == nil {
		return fmt.Errorf("dispatcher not configured")
	}
	retention := w.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	n, err := w.Dispatcher.Purge(ctx, time.Now().UTC(), retention)
	if err != nil {
		return err
	}
	if n > 0 {
		w.Logger.Info().Int64("purged", n).Msg("outbox purged")
	}
	return nil
}

type EventCompletionArgs struct{}

func (EventCompletionArgs) Kind() string { return JobKindEventCompletion }

// EventCompleter is the slice of the event service the completion job needs.
type EventCompleter interface {
	CompleteEnded(ctx context.Context) (int64, error)
}

// EventCompletionWorker marks active events whose end time has passed as completed.
type EventCompletionWorker struct {
	river.WorkerDefaults[EventCompletionArgs]
	Events EventCompleter
	Logger zerolog.Logger
}

func (w EventCompletionWorker) Work(ctx context.Context, job *river.Job[EventCompletionArgs]) error {
	if w.Events == nil {
		return fmt.Errorf("event service not configured")
	}
	n, err := w.Events.CompleteEnded(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.EventsCompleted.Add(float64(n))
		w.Logger.Info().Int64("completed", n).Msg("ended events completed")
	}
	return nil
}

type BackupSnapshotArgs struct {
	BackupID string `json:"backup_id"`
}

func (BackupSnapshotArgs) Kind() string { return JobKindBackupSnapshot }

// BackupSnapshotWorker writes the snapshot for a requested backup.
type BackupSnapshotWorker struct {
	river.WorkerDefaults[BackupSnapshotArgs]
	Backups *backups.Service
}

func (w BackupSnapshotWorker) Work(ctx context.Context, job *river.Job[BackupSnapshotArgs]) error {
	if w.Backups == nil {
		return fmt.Errorf("backup service not configured")
	}
	if job.Args.BackupID == "" {
		return river.JobCancel(fmt.Errorf("backup id is required"))
	}
	err := w.Backups.Write(ctx, job.Args.BackupID)
	if errors.Is(err, backups.ErrBackupNotFound) {
		return river.JobCancel(err)
	}
	return err
}

// Deps are the services the workers call into.
type Deps struct {
	Dispatcher      *notifications.Dispatcher
	Events          EventCompleter
	Backups         *backups.Service
	OutboxRetention time.Duration
	Logger          zerolog.Logger
}

// NewWorkers registers every worker.
func NewWorkers(deps Deps) *river.Workers {
	logger := deps.Logger.With().Str("component", "jobs").Logger()
	workers := river.NewWorkers()
	river.AddWorker(workers, OutboxDispatchWorker{Dispatcher: deps.Dispatcher})
	river.AddWorker(workers, OutboxPurgeWorker{Dispatcher: deps.Dispatcher, Retention: deps.OutboxRetention, Logger: logger})
	river.AddWorker(workers, EventCompletionWorker{Events: deps.Events, Logger: logger})
	river.AddWorker(workers, BackupSnapshotWorker{Backups: deps.Backups})
	return workers
}

var _ backups.Enqueuer = (*Enqueuer)(nil)

// Enqueuer inserts backup jobs. The backup service is built before the River
// client exists, so the client is bound afterwards.
type Enqueuer struct {
	mu     sync.RWMutex
	client *river.Client[pgx.Tx]
}

func (e *Enqueuer) Bind(client *river.Client[pgx.Tx]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = client
}

func (e *Enqueuer) EnqueueBackup(ctx context.Context, backupID string) error {
	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("job client not started")
	}
	opts := InsertOptsForKind(JobKindBackupSnapshot)
	if _, err := client.Insert(ctx, BackupSnapshotArgs{BackupID: backupID}, &opts); err != nil {
		return fmt.Errorf("insert backup job: %w", err)
	}
	return nil
}
