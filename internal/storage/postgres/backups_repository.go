package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

var (
	_ backups.Repository = (*BackupRepository)(nil)
	_ backups.Source     = (*Repository)(nil)
)

type BackupRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *BackupRepository) queryer() queryer { return pick(r.pool, r.tx) }

const backupColumns = `id, file_name, size_bytes, status, error, created_by, created_at, completed_at`

func scanBackup(row pgx.Row, extra ...any) (*backups.Backup, error) {
	var (
		b           backups.Backup
		completedAt pgtype.Timestamptz
	)
	dest := []any{&b.ID, &b.FileName, &b.SizeBytes, &b.Status, &b.Error, &b.CreatedBy, &b.CreatedAt, &completedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.CompletedAt = timeFromPg(completedAt)
	return &b, nil
}

func (r *BackupRepository) Create(ctx context.Context, b *backups.Backup) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO backups (id, status, created_by, created_at) VALUES ($1, $2, $3, $4)
`, b.ID, b.Status, b.CreatedBy, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

func (r *BackupRepository) GetByID(ctx context.Context, id string) (*backups.Backup, error) {
	b, err := scanBackup(r.queryer().QueryRow(ctx, `SELECT `+backupColumns+` FROM backups WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backups.ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

func (r *BackupRepository) List(ctx context.Context, limit, offset int) ([]*backups.Backup, int, error) {
	if limit <= 0 {
		limit = 10
	}
	q := r.queryer()
	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM backups`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count backups: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	out := []*backups.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate backups: %w", err)
	}
	return out, total, nil
}

func (r *BackupRepository) Complete(ctx context.Context, id, fileName string, size int64, at time.Time) error {
	return r.settle(ctx, `
UPDATE backups SET status = 'completed', file_name = $2, size_bytes = $3, completed_at = $4, error = ''
 WHERE id = $1`, id, fileName, size, at)
}

func (r *BackupRepository) Fail(ctx context.Context, id, reason string) error {
	return r.settle(ctx, `UPDATE backups SET status = 'failed', error = $2 WHERE id = $1`, id, reason)
}

func (r *BackupRepository) settle(ctx context.Context, sql string, args ...any) error {
	tag, err := r.queryer().Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return backups.ErrBackupNotFound
	}
	return nil
}

// ListAllUsers, ListAllEvents and ListAdmins let the root repository serve
// as a snapshot source.
func (r *Repository) ListAllUsers(ctx context.Context) ([]*users.User, error) {
	return r.Users().ListAll(ctx)
}

func (r *Repository) ListAllEvents(ctx context.Context) ([]*events.Event, error) {
	return r.Events().ListAll(ctx)
}

func (r *Repository) ListAdmins(ctx context.Context) ([]*admins.AdminUser, error) {
	return r.Admins().List(ctx)
}
