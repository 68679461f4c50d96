package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/notifications"
)

type fakeOutbox struct {
	messages []notifications.Message
	settled  map[int64]error
	purged   time.Time
}

func (o *fakeOutbox) Process(ctx context.Context, limit int, deliver func(context.Context, notifications.Message) error) (notifications.Outcome, error) {
	var out notifications.Outcome
	o.settled = map[int64]error{}
	for i, m := range o.messages {
		if i >= limit {
			break
		}
		err := deliver(ctx, m)
		o.settled[m.ID] = err
		switch {
		case err == nil:
			out.Sent++
		case errors.Is(err, notifications.ErrSkipped):
			out.Skipped++
		default:
			out.Failed++
		}
	}
	return out, nil
}

func (o *fakeOutbox) CountPending(context.Context) (int, error) { return len(o.messages), nil }

func (o *fakeOutbox) PurgeSettled(_ context.Context, before time.Time) (int64, error) {
	o.purged = before
	return 2, nil
}

type fakeSender struct {
	sent []string
}

func (s *fakeSender) SendNotice(_ context.Context, recipient, _ string, _ events.Notice) error {
	s.sent = append(s.sent, recipient)
	return nil
}

func TestOutboxDispatchWorkerHonorsBatchSize(t *testing.T) {
	outbox := &fakeOutbox{messages: []notifications.Message{
		{ID: 1, Recipient: "a@example.com"},
		{ID: 2, Recipient: "b@example.com"},
		{ID: 3, Recipient: "c@example.com"},
	}}
	sender := &fakeSender{}
	worker := OutboxDispatchWorker{Dispatcher: notifications.NewDispatcher(outbox, sender, nil, zerolog.Nop())}

	err := worker.Work(context.Background(), &river.Job[OutboxDispatchArgs]{Args: OutboxDispatchArgs{BatchSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.sent)
}

func TestOutboxDispatchWorkerRequiresDispatcher(t *testing.T) {
	err := OutboxDispatchWorker{}.Work(context.Background(), &river.Job[OutboxDispatchArgs]{})
	assert.Error(t, err)
}

func TestOutboxPurgeWorkerUsesRetention(t *testing.T) {
	outbox := &fakeOutbox{}
	worker := OutboxPurgeWorker{
		Dispatcher: notifications.NewDispatcher(outbox, &fakeSender{}, nil, zerolog.Nop()),
		Retention:  48 * time.Hour,
		Logger:     zerolog.Nop(),
	}

	require.NoError(t, worker.Work(context.Background(), &river.Job[OutboxPurgeArgs]{}))
	assert.WithinDuration(t, time.Now().Add(-48*time.Hour), outbox.purged, time.Minute)
}

type fakeCompleter struct {
	n   int64
	err error
}

func (f fakeCompleter) CompleteEnded(context.Context) (int64, error) { return f.n, f.err }

func TestEventCompletionWorker(t *testing.T) {
	worker := EventCompletionWorker{Events: fakeCompleter{n: 3}, Logger: zerolog.Nop()}
	assert.NoError(t, worker.Work(context.Background(), &river.Job[EventCompletionArgs]{}))

	failing := EventCompletionWorker{Events: fakeCompleter{err: errors.New("db down")}, Logger: zerolog.Nop()}
	assert.EqualError(t, failing.Work(context.Background(), &river.Job[EventCompletionArgs]{}), "db down")
}

func TestBackupSnapshotWorkerCancelsWithoutID(t *testing.T) {
	worker := BackupSnapshotWorker{}
	err := worker.Work(context.Background(), &river.Job[BackupSnapshotArgs]{})
	assert.Error(t, err)
}

func TestEnqueuerUnbound(t *testing.T) {
	var e Enqueuer
	err := e.EnqueueBackup(context.Background(), "01HZ")
	assert.Error(t, err)
}

func TestNewWorkers(t *testing.T) {
	assert.NotNil(t, NewWorkers(Deps{Logger: zerolog.Nop()}))
}

func TestAlertingErrorHandlerNotifies(t *testing.T) {
	var got error
	h := NewAlertingErrorHandler(nil, func(_ context.Context, _ *rivertype.JobRow, err error) { got = err })

	h.HandleError(context.Background(), &rivertype.JobRow{ID: 1, Kind: JobKindBackupSnapshot}, errors.New("disk full"))
	assert.EqualError(t, got, "disk full")

	h.HandlePanic(context.Background(), &rivertype.JobRow{ID: 2, Kind: JobKindOutboxPurge}, "boom", "trace")
	assert.EqualError(t, got, "panic: boom")
}
