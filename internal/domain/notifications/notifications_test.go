package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
)

// fakeOutbox keeps messages in memory and settles them the way the
// Postgres outbox does.
type fakeOutbox struct {
	messages []*Message
}

func (f *fakeOutbox) Process(ctx context.Context, limit int, deliver func(context.Context, Message) error) (Outcome, error) {
	var out Outcome
	for _, m := range f.messages {
		if limit == 0 {
			break
		}
		deliverable := m.Status == StatusPending || (m.Status == StatusFailed && m.Attempts < MaxAttempts)
		if !deliverable {
			continue
		}
		limit--
		err := deliver(ctx, *m)
		switch {
		case err == nil:
			m.Status = StatusSent
			out.Sent++
		case errors.Is(err, ErrSkipped):
			m.Status = StatusSkipped
			out.Skipped++
		default:
			m.Status = StatusFailed
			m.Attempts++
			m.LastError = err.Error()
			out.Failed++
		}
	}
	return out, nil
}

func (f *fakeOutbox) CountPending(context.Context) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeOutbox) PurgeSettled(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeSender struct {
	err  error
	sent []string
}

func (s *fakeSender) SendNotice(_ context.Context, recipient, _ string, _ events.Notice) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, recipient)
	return nil
}

func pending(recipient string) *Message {
	return &Message{
		Notice:    events.Notice{Kind: events.NoticeRegistered, EventID: "e1", UserID: "u1"},
		Recipient: recipient,
		Status:    StatusPending,
	}
}

func TestDispatchSends(t *testing.T) {
	box := &fakeOutbox{messages: []*Message{pending("a@example.com"), pending("b@example.com")}}
	sender := &fakeSender{}
	d := NewDispatcher(box, sender, nil, zerolog.Nop())

	out, err := d.Dispatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, Outcome{Sent: 2}, out)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.sent)
}

func TestDispatchSkipsWhenDisabled(t *testing.T) {
	box := &fakeOutbox{messages: []*Message{pending("a@example.com")}}
	sender := &fakeSender{}
	off := func(context.Context) (bool, error) { return false, nil }
	d := NewDispatcher(box, sender, off, zerolog.Nop())

	out, err := d.Dispatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, Outcome{Skipped: 1}, out)
	assert.Empty(t, sender.sent)
	assert.Equal(t, StatusSkipped, box.messages[0].Status)
}

func TestDispatchSkipsMissingRecipient(t *testing.T) {
	box := &fakeOutbox{messages: []*Message{pending("")}}
	d := NewDispatcher(box, &fakeSender{}, nil, zerolog.Nop())

	out, err := d.Dispatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Skipped)
}

func TestDispatchStopsRetryingAfterMaxAttempts(t *testing.T) {
	box := &fakeOutbox{messages: []*Message{pending("a@example.com")}}
	d := NewDispatcher(box, &fakeSender{err: errors.New("smtp down")}, nil, zerolog.Nop())

	for i := 0; i < MaxAttempts+2; i++ {
		_, err := d.Dispatch(context.Background(), 10)
		require.NoError(t, err)
	}

	assert.Equal(t, StatusFailed, box.messages[0].Status)
	assert.Equal(t, MaxAttempts, box.messages[0].Attempts)
	assert.Equal(t, "smtp down", box.messages[0].LastError)
}

func TestDispatchSettingError(t *testing.T) {
	broken := func(context.Context) (bool, error) { return false, errors.New("no settings") }
	d := NewDispatcher(&fakeOutbox{}, &fakeSender{}, broken, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), 10)
	assert.Error(t, err)
}
