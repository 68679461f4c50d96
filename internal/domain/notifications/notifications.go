// Package notifications delivers the registration notices that event
// mutations write to the outbox.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
)

// MaxAttempts is how many deliveries a message gets before it is left failed.
const MaxAttempts = 5

// ErrSkipped is returned by a delivery func to settle a message without
// sending it, for example while email notifications are switched off.
var ErrSkipped = errors.New("notification skipped")

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type Message struct {
	ID            int64
	Notice        events.Notice
	Recipient     string
	RecipientName string
	Status        Status
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}

// Outcome is what a delivery func decided about one message.
type Outcome struct {
	Sent    int
	Failed  int
	Skipped int
}

// Outbox is the persistent queue. Process claims up to limit deliverable
// messages (pending, or failed with attempts left) so that concurrent
// dispatchers never see the same message, passes each to deliver and stores
// the result. Each message is settled on its own, and delivery is
// at-least-once.
type Outbox interface {
	Process(ctx context.Context, limit int, deliver func(context.Context, Message) error) (Outcome, error)
	CountPending(ctx context.Context) (int, error)
	PurgeSettled(ctx context.Context, before time.Time) (int64, error)
}

// Sender delivers one notice to its recipient.
type Sender interface {
	SendNotice(ctx context.Context, recipient, name string, notice events.Notice) error
}

type Dispatcher struct {
	outbox  Outbox
	sender  Sender
	enabled func(ctx context.Context) (bool, error)
	logger  zerolog.Logger
}

// NewDispatcher wires an outbox to a sender. enabled may be nil, in which
// case every message is sent.
func NewDispatcher(outbox Outbox, sender Sender, enabled func(ctx context.Context) (bool, error), logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:  outbox,
		sender:  sender,
		enabled: enabled,
		logger:  logger.With().Str("component", "outbox").Logger(),
	}
}

// Dispatch processes one batch.
func (d *Dispatcher) Dispatch(ctx context.Context, batch int) (Outcome, error) {
	send := true
	if d.enabled != nil {
		on, err := d.enabled(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("read notification setting: %w", err)
		}
		send = on
	}

	outcome, err := d.outbox.Process(ctx, batch, func(ctx context.Context, msg Message) error {
		kind := string(msg.Notice.Kind)
		if !send || msg.Recipient == "" {
			metrics.OutboxDispatched.WithLabelValues(kind, "skipped").Inc()
			return ErrSkipped
		}
		err := d.sender.SendNotice(ctx, msg.Recipient, msg.RecipientName, msg.Notice)
		if errors.Is(err, ErrSkipped) {
			metrics.OutboxDispatched.WithLabelValues(kind, "skipped").Inc()
			return err
		}
		if err != nil {
			metrics.OutboxDispatched.WithLabelValues(kind, "failed").Inc()
			d.logger.Warn().Err(err).
				Int64("message_id", msg.ID).
				Int("attempt", msg.Attempts+1).
				Msg("notice delivery failed")
			return err
		}
		metrics.OutboxDispatched.WithLabelValues(kind, "sent").Inc()
		return nil
	})
	if err != nil {
		return outcome, fmt.Errorf("process outbox: %w", err)
	}

	if pending, err := d.outbox.CountPending(ctx); err == nil {
		metrics.OutboxPending.Set(float64(pending))
	}
	if outcome.Sent+outcome.Failed+outcome.Skipped > 0 {
		d.logger.Info().
			Int("sent", outcome.Sent).
			Int("failed", outcome.Failed).
			Int("skipped", outcome.Skipped).
			Msg("outbox batch processed")
	}
	return outcome, nil
}

// Purge removes settled messages older than retention.
func (d *Dispatcher) Purge(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	return d.outbox.PurgeSettled(ctx, now.Add(-retention))
}
