package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
)

var _ admins.Repository = (*AdminRepository)(nil)

type AdminRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *AdminRepository) queryer() queryer { return pick(r.pool, r.tx) }

const adminColumns = `
       id, username, email, password_hash, name, role, permissions, is_active,
       last_login, login_attempts, lock_until, created_by, created_at, updated_at`

func scanAdmin(row pgx.Row) (*admins.AdminUser, error) {
	var (
		a         admins.AdminUser
		lastLogin pgtype.Timestamptz
		lockUntil pgtype.Timestamptz
		createdBy *string
	)
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.Password,
		&a.Name,
		&a.Role,
		&a.Permissions,
		&a.IsActive,
		&lastLogin,
		&a.LoginAttempts,
		&lockUntil,
		&createdBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.LastLogin = timeFromPg(lastLogin)
	a.LockUntil = timeFromPg(lockUntil)
	a.CreatedBy = derefString(createdBy)
	return &a, nil
}

func duplicateAdmin(err error) bool {
	return isUniqueViolation(err, "admin_users_username_key") ||
		isUniqueViolation(err, "admin_users_email_key") ||
		isUniqueViolation(err, "admin_users_pkey")
}

func (r *AdminRepository) Create(ctx context.Context, a *admins.AdminUser) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO admin_users (
  id, username, email, password_hash, name, role, permissions, is_active,
  login_attempts, created_by, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`,
		a.ID,
		a.Username,
		a.Email,
		a.Password,
		a.Name,
		a.Role,
		a.Permissions,
		a.IsActive,
		a.LoginAttempts,
		nullIfEmpty(a.CreatedBy),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if duplicateAdmin(err) {
		return admins.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (*admins.AdminUser, error) {
	return r.getWhere(ctx, r.queryer(), `id = $1`, id)
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*admins.AdminUser, error) {
	return r.getWhere(ctx, r.queryer(), `lower(username) = lower($1)`, username)
}

func (r *AdminRepository) getWhere(ctx context.Context, q queryer, where string, arg any) (*admins.AdminUser, error) {
	a, err := scanAdmin(q.QueryRow(ctx, `SELECT`+adminColumns+` FROM admin_users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, admins.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (r *AdminRepository) List(ctx context.Context) ([]*admins.AdminUser, error) {
	rows, err := r.queryer().Query(ctx, `SELECT`+adminColumns+` FROM admin_users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	out := []*admins.AdminUser{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return out, nil
}

func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// Update stores the editable fields: email, name, role, permissions and
// the active flag.
func (r *AdminRepository) Update(ctx context.Context, a *admins.AdminUser) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE admin_users SET
  email = $2, name = $3, role = $4, permissions = $5, is_active = $6, updated_at = $7
 WHERE id = $1
`, a.ID, a.Email, a.Name, a.Role, a.Permissions, a.IsActive, a.UpdatedAt)
	if duplicateAdmin(err) {
		return admins.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return admins.ErrAdminNotFound
	}
	return nil
}

func (r *AdminRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return admins.ErrAdminNotFound
	}
	return nil
}

// UpdateLogin locks the admin row, lets fn update the login bookkeeping
// and stores it, so concurrent failed logins cannot lose a count.
func (r *AdminRepository) UpdateLogin(ctx context.Context, id string, fn func(a *admins.AdminUser)) (*admins.AdminUser, error) {
	var updated *admins.AdminUser
	err := inTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		a, err := r.getWhere(ctx, tx, `id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		fn(a)
		_, err = tx.Exec(ctx, `
UPDATE admin_users SET last_login = $2, login_attempts = $3, lock_until = $4
 WHERE id = $1
`, a.ID, pgTime(a.LastLogin), a.LoginAttempts, pgTime(a.LockUntil))
		if err != nil {
			return fmt.Errorf("update admin login: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *AdminRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE admin_users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set admin password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return admins.ErrAdminNotFound
	}
	return nil
}
