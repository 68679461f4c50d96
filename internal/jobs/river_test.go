package jobs

import (
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/config"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := NewRetryPolicy()
	attempted := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    string
		attempt int
		want    time.Duration
	}{
		{name: "first completion retry", kind: JobKindEventCompletion, attempt: 1, want: time.Minute},
		{name: "second completion retry", kind: JobKindEventCompletion, attempt: 2, want: 2 * time.Minute},
		{name: "capped completion retry", kind: JobKindEventCompletion, attempt: 10, want: 15 * time.Minute},
		{name: "backup retry", kind: JobKindBackupSnapshot, attempt: 3, want: 4 * time.Minute},
		{name: "unknown kind uses default", kind: "other", attempt: 1, want: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{Kind: tt.kind, Attempt: tt.attempt, AttemptedAt: &attempted}
			assert.Equal(t, attempted.Add(tt.want), policy.NextRetry(job))
		})
	}
}

func TestRetryPolicyNoDelayRetriesImmediately(t *testing.T) {
	policy := NewRetryPolicy()
	before := time.Now()
	next := policy.NextRetry(&rivertype.JobRow{Kind: JobKindOutboxDispatch, Attempt: 1})
	assert.False(t, next.Before(before))
	assert.WithinDuration(t, before, next, time.Second)
}

func TestInsertOptsForKind(t *testing.T) {
	backup := InsertOptsForKind(JobKindBackupSnapshot)
	assert.Equal(t, QueueBackups, backup.Queue)
	assert.Equal(t, BackupSnapshotMaxAttempts, backup.MaxAttempts)

	dispatch := InsertOptsForKind(JobKindOutboxDispatch)
	assert.Empty(t, dispatch.Queue)
	assert.Equal(t, OutboxDispatchMaxAttempts, dispatch.MaxAttempts)
}

func TestNewClientConfig(t *testing.T) {
	workers := river.NewWorkers()
	cfg := NewClientConfig(workers, nil, nil, nil, 0)

	require.Contains(t, cfg.Queues, river.QueueDefault)
	assert.Equal(t, 10, cfg.Queues[river.QueueDefault].MaxWorkers)
	assert.Equal(t, 1, cfg.Queues[QueueBackups].MaxWorkers)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Nil(t, cfg.ErrorHandler)
	assert.Same(t, workers, cfg.Workers)
}

func TestNewPeriodicJobs(t *testing.T) {
	jobs := NewPeriodicJobs(config.JobsConfig{OutboxInterval: time.Minute, OutboxBatchSize: 25})
	assert.Len(t, jobs, 3)
}

func TestJobKinds(t *testing.T) {
	assert.Equal(t, JobKindOutboxDispatch, OutboxDispatchArgs{}.Kind())
	assert.Equal(t, JobKindOutboxPurge, OutboxPurgeArgs{}.Kind())
	assert.Equal(t, JobKindEventCompletion, EventCompletionArgs{}.Kind())
	assert.Equal(t, JobKindBackupSnapshot, BackupSnapshotArgs{}.Kind())
}
