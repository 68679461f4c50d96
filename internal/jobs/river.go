package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"

	"github.com/Togather-Foundation/eventplanner/internal/config"
)

const (
	JobKindOutboxDispatch  = "outbox_dispatch"
	JobKindOutboxPurge     = "outbox_purge"
	JobKindEventCompletion = "event_completion"
	JobKindBackupSnapshot  = "backup_snapshot"
)

const (
	// OutboxDispatchMaxAttempts is low because the next periodic run picks
	// up whatever a failed run left behind.
	OutboxDispatchMaxAttempts  = 1
	EventCompletionMaxAttempts = 3
	BackupSnapshotMaxAttempts  = 3
	DefaultMaxAttempts         = 5
)

// QueueBackups runs snapshot jobs one at a time.
const QueueBackups = "backups"

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindOutboxDispatch: {
				MaxAttempts: OutboxDispatchMaxAttempts,
			},
			JobKindEventCompletion: {
				MaxAttempts: EventCompletionMaxAttempts,
				BaseDelay:   time.Minute,
				MaxDelay:    15 * time.Minute,
			},
			JobKindBackupSnapshot: {
				MaxAttempts: BackupSnapshotMaxAttempts,
				BaseDelay:   time.Minute,
				MaxDelay:    10 * time.Minute,
			},
		},
	}
}

// NextRetry doubles the base delay on every attempt, capped at MaxDelay.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	cfg := p.configFor(job.Kind)
	if cfg.BaseDelay == 0 {
		return time.Now()
	}

	attempt := max(job.Attempt, 1)
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: time.Minute, MaxDelay: time.Hour}
	}
	if cfg, ok := p.ByKind[kind]; ok {
		return cfg
	}
	return p.Default
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	opts := river.InsertOpts{MaxAttempts: NewRetryPolicy().configFor(kind).MaxAttempts}
	if kind == JobKindBackupSnapshot {
		opts.Queue = QueueBackups
	}
	return opts
}

// NewClientConfig builds a River client configuration with the retry policy
// and the periodic schedule.
func NewClientConfig(workers *river.Workers, logger *slog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob, maxWorkers int) *river.Config {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	policy := NewRetryPolicy()
	cfg := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
			QueueBackups:       {MaxWorkers: 1},
		},
		Hooks: hooks,
	}
	if logger != nil {
		cfg.Logger = logger
		cfg.ErrorHandler = NewAlertingErrorHandler(logger, nil)
	}
	return cfg
}

func NewClient(pool *pgxpool.Pool, cfg *river.Config) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), cfg)
}

// NewPeriodicJobs schedules outbox delivery, event completion and the
// daily outbox purge.
func NewPeriodicJobs(cfg config.JobsConfig) []*river.PeriodicJob {
	dispatchEvery := cfg.OutboxInterval
	if dispatchEvery <= 0 {
		dispatchEvery = 30 * time.Second
	}
	completeEvery := cfg.CompletionInterval
	if completeEvery <= 0 {
		completeEvery = 15 * time.Minute
	}

	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(dispatchEvery),
			func() (river.JobArgs, *river.InsertOpts) {
				opts := InsertOptsForKind(JobKindOutboxDispatch)
				return OutboxDispatchArgs{BatchSize: cfg.OutboxBatchSize}, &opts
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(completeEvery),
			func() (river.JobArgs, *river.InsertOpts) {
				opts := InsertOptsForKind(JobKindEventCompletion)
				return EventCompletionArgs{}, &opts
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return OutboxPurgeArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}

// Migrate brings River's own tables up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	return nil
}
