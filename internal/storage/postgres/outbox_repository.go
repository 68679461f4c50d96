package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/notifications"
)

var _ notifications.Outbox = (*OutboxRepository)(nil)

// OutboxRepository stores registration notices written by event mutations.
type OutboxRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *OutboxRepository) queryer() queryer { return pick(r.pool, r.tx) }

// Process delivers up to limit deliverable messages, oldest first. Each
// message is claimed with FOR UPDATE SKIP LOCKED and settled in its own
// transaction, so concurrent dispatchers split the work and a failed commit
// only affects the message in flight. Delivery is at-least-once: if the
// status update or commit fails after deliver returned, that one message is
// claimed again on a later run.
func (r *OutboxRepository) Process(ctx context.Context, limit int, deliver func(context.Context, notifications.Message) error) (notifications.Outcome, error) {
	var (
		outcome notifications.Outcome
		afterID int64
	)
	for i := 0; i < limit; i++ {
		var (
			claimed bool
			result  notifications.Status
		)
		err := inTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
			msg, ok, err := claimMessage(ctx, tx, afterID)
			if err != nil || !ok {
				return err
			}
			claimed = true
			afterID = msg.ID

			result, err = settle(ctx, tx, msg, deliver(ctx, msg))
			return err
		})
		if err != nil {
			return outcome, err
		}
		if !claimed {
			break
		}
		switch result {
		case notifications.StatusSent:
			outcome.Sent++
		case notifications.StatusSkipped:
			outcome.Skipped++
		default:
			outcome.Failed++
		}
	}
	return outcome, nil
}

func settle(ctx context.Context, tx pgx.Tx, msg notifications.Message, deliverErr error) (notifications.Status, error) {
	var (
		status notifications.Status
		err    error
	)
	switch {
	case deliverErr == nil:
		status = notifications.StatusSent
		_, err = tx.Exec(ctx, `
UPDATE notification_outbox SET status = 'sent', attempts = attempts + 1, sent_at = now(), last_error = ''
 WHERE id = $1`, msg.ID)
	case errors.Is(deliverErr, notifications.ErrSkipped):
		status = notifications.StatusSkipped
		_, err = tx.Exec(ctx, `UPDATE notification_outbox SET status = 'skipped', sent_at = now() WHERE id = $1`, msg.ID)
	default:
		status = notifications.StatusFailed
		_, err = tx.Exec(ctx, `
UPDATE notification_outbox SET status = 'failed', attempts = attempts + 1, last_error = $2
 WHERE id = $1`, msg.ID, deliverErr.Error())
	}
	if err != nil {
		return status, fmt.Errorf("record delivery of message %d: %w", msg.ID, err)
	}
	return status, nil
}

// claimMessage locks the oldest deliverable message with an id above afterID.
// The cursor keeps a message that just failed from being retried in the same
// run.
func claimMessage(ctx context.Context, tx pgx.Tx, afterID int64) (notifications.Message, bool, error) {
	var (
		m      notifications.Message
		sentAt pgtype.Timestamptz
	)
	err := tx.QueryRow(ctx, `
SELECT id, payload, recipient, recipient_name, status, attempts, last_error, created_at, sent_at
  FROM notification_outbox
 WHERE (status = 'pending' OR (status = 'failed' AND attempts < $1))
   AND id > $2
 ORDER BY id ASC
 LIMIT 1
   FOR UPDATE SKIP LOCKED
`, notifications.MaxAttempts, afterID).Scan(
		&m.ID,
		&m.Notice,
		&m.Recipient,
		&m.RecipientName,
		&m.Status,
		&m.Attempts,
		&m.LastError,
		&m.CreatedAt,
		&sentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("claim outbox message: %w", err)
	}
	m.SentAt = timeFromPg(sentAt)
	return m, true, nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM notification_outbox WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// PurgeSettled deletes sent and skipped messages settled before the cutoff.
func (r *OutboxRepository) PurgeSettled(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
DELETE FROM notification_outbox
 WHERE status IN ('sent', 'skipped') AND sent_at < $1
`, before)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
