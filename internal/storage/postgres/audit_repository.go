package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/audit"
)

var _ audit.Store = (*AuditRepository)(nil)

type AuditRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *AuditRepository) queryer() queryer { return pick(r.pool, r.tx) }

func (r *AuditRepository) Insert(ctx context.Context, e audit.Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := r.queryer().Exec(ctx, `
INSERT INTO audit_log (timestamp, action, actor, actor_type, resource_type, resource_id, ip_address, status, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, e.Timestamp, e.Action, e.Actor, e.ActorType, e.ResourceType, e.ResourceID, e.IPAddress, e.Status, details)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]audit.Entry, int, error) {
	if limit <= 0 {
		limit = 10
	}
	q := r.queryer()

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit log: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT id, timestamp, action, actor, actor_type, resource_type, resource_id, ip_address, status, details
  FROM audit_log
 ORDER BY timestamp DESC, id DESC
 LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Action,
			&e.Actor,
			&e.ActorType,
			&e.ResourceType,
			&e.ResourceID,
			&e.IPAddress,
			&e.Status,
			&e.Details,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, total, nil
}
