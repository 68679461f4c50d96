package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *UserRepository) queryer() queryer { return pick(r.pool, r.tx) }

const userColumns = `
       u.id, u.email, u.password_hash, u.name, u.profile_image, u.bio, u.company,
       u.job_title, u.phone, u.interests, u.social_links, u.is_active, u.last_login,
       u.created_at, u.updated_at`

type userRow struct {
	users.User
	LastLogin pgtype.Timestamptz
}

func scanUser(row pgx.Row, extra ...any) (*users.User, error) {
	var r userRow
	dest := []any{
		&r.ID,
		&r.Email,
		&r.Password,
		&r.Name,
		&r.ProfileImage,
		&r.Bio,
		&r.Company,
		&r.JobTitle,
		&r.Phone,
		&r.Interests,
		&r.SocialLinks,
		&r.IsActive,
		&r.LastLogin,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	u := r.User
	u.LastLogin = timeFromPg(r.LastLogin)
	if u.Interests == nil {
		u.Interests = []string{}
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows, total *int) ([]*users.User, error) {
	defer rows.Close()
	out := []*users.User{}
	for rows.Next() {
		var extra []any
		if total != nil {
			extra = append(extra, total)
		}
		u, err := scanUser(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *UserRepository) Create(ctx context.Context, u *users.User) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO users (
  id, email, password_hash, name, profile_image, bio, company, job_title, phone,
  interests, social_links, is_active, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`,
		u.ID,
		u.Email,
		u.Password,
		u.Name,
		u.ProfileImage,
		u.Bio,
		u.Company,
		u.JobTitle,
		u.Phone,
		nonNil(u.Interests),
		u.SocialLinks,
		u.IsActive,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return users.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getWhere(ctx, `u.id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getWhere(ctx, `lower(u.email) = lower($1)`, email)
}

func (r *UserRepository) getWhere(ctx context.Context, where string, arg any) (*users.User, error) {
	u, err := scanUser(r.queryer().QueryRow(ctx, `SELECT`+userColumns+` FROM users u WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update stores the profile fields of u. Credentials, activity and login
// time have their own methods.
func (r *UserRepository) Update(ctx context.Context, u *users.User) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE users SET
  email = $2, name = $3, profile_image = $4, bio = $5, company = $6, job_title = $7,
  phone = $8, interests = $9, social_links = $10, updated_at = $11
 WHERE id = $1
`,
		u.ID,
		u.Email,
		u.Name,
		u.ProfileImage,
		u.Bio,
		u.Company,
		u.JobTitle,
		u.Phone,
		nonNil(u.Interests),
		u.SocialLinks,
		u.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return users.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (*users.User, error) {
	u, err := scanUser(r.queryer().QueryRow(ctx, `
UPDATE users u SET is_active = $2, updated_at = now()
 WHERE u.id = $1
RETURNING`+userColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set user active: %w", err)
	}
	return u, nil
}

// Delete removes the user. Their attendee records, connections and
// organized events go with them through foreign-key cascades.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.queryer().Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// List backs the admin user table: search covers name, email and company.
func (r *UserRepository) List(ctx context.Context, filter users.ListFilter, limit, offset int) ([]*users.User, int, error) {
	const where = `
 WHERE ($1 = '' OR u.name ILIKE $1 OR u.email ILIKE $1 OR u.company ILIKE $1)
   AND ($2::boolean IS NULL OR u.is_active = $2::boolean)`
	args := []any{likePattern(filter.Search), filter.Active}
	return r.page(ctx, where, `u.created_at DESC, u.id DESC`, args, limit, offset)
}

// Search backs the member directory. Inactive users and the viewer are
// never returned.
func (r *UserRepository) Search(ctx context.Context, viewerID, query string, limit, offset int) ([]*users.User, int, error) {
	const where = `
 WHERE u.is_active
   AND u.id <> $1
   AND (u.name ILIKE $2 OR u.company ILIKE $2 OR u.job_title ILIKE $2
        OR EXISTS (SELECT 1 FROM unnest(u.interests) AS interest WHERE interest ILIKE $2))`
	args := []any{viewerID, likePattern(query)}
	return r.page(ctx, where, `u.name ASC, u.id ASC`, args, limit, offset)
}

func (r *UserRepository) page(ctx context.Context, where, orderBy string, args []any, limit, offset int) ([]*users.User, int, error) {
	if limit <= 0 {
		limit = 10
	}
	n := len(args)
	q := r.queryer()
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT%s, count(*) OVER () FROM users u%s
 ORDER BY %s
 LIMIT $%d OFFSET $%d`, userColumns, where, orderBy, n+1, n+2), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	var total int
	list, err := collectUsers(rows, &total)
	if err != nil {
		return nil, 0, err
	}
	if len(list) == 0 && offset > 0 {
		if err := q.QueryRow(ctx, `SELECT count(*) FROM users u`+where, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count users: %w", err)
		}
	}
	return list, total, nil
}

// Suggest finds active users who share a company, job title or interest
// with the caller and are not yet connected to them, newest first.
func (r *UserRepository) Suggest(ctx context.Context, userID string, criteria users.SuggestionCriteria, limit int) ([]*users.User, error) {
	rows, err := r.queryer().Query(ctx, `SELECT`+userColumns+` FROM users u
 WHERE u.is_active
   AND u.id <> $1
   AND NOT EXISTS (
       SELECT 1 FROM user_connections c
        WHERE c.user_id = $1 AND c.connected_user_id = u.id)
   AND ($5
        OR ($2 <> '' AND u.company = $2)
        OR ($3 <> '' AND u.job_title = $3)
        OR u.interests && $4::text[])
 ORDER BY u.created_at DESC, u.id DESC
 LIMIT $6
`, userID, criteria.Company, criteria.JobTitle, nonNil(criteria.Interests), criteria.Empty(), limit)
	if err != nil {
		return nil, fmt.Errorf("suggest users: %w", err)
	}
	return collectUsers(rows, nil)
}

// RecentlyActive returns active users ordered by their last login.
func (r *UserRepository) RecentlyActive(ctx context.Context, excludeID string, limit int) ([]*users.User, error) {
	rows, err := r.queryer().Query(ctx, `SELECT`+userColumns+` FROM users u
 WHERE u.is_active AND u.id <> $1
 ORDER BY u.last_login DESC NULLS LAST, u.id ASC
 LIMIT $2
`, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("recently active users: %w", err)
	}
	return collectUsers(rows, nil)
}

// ListAll returns every user, for reports and backups.
func (r *UserRepository) ListAll(ctx context.Context) ([]*users.User, error) {
	rows, err := r.queryer().Query(ctx, `SELECT`+userColumns+` FROM users u ORDER BY u.created_at ASC, u.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	return collectUsers(rows, nil)
}

func (r *UserRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM users WHERE is_active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// ConnectionCounts maps each user id with at least one connection to its
// number of connections.
func (r *UserRepository) ConnectionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.queryer().Query(ctx, `SELECT user_id, count(*) FROM user_connections GROUP BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("count connections: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan connection count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Connect writes both directions of the edge in one transaction.
func (r *UserRepository) Connect(ctx context.Context, userID, otherID string, at time.Time) error {
	return inTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
INSERT INTO user_connections (user_id, connected_user_id, created_at)
VALUES ($1, $2, $3), ($2, $1, $3)
ON CONFLICT DO NOTHING
`, userID, otherID, at)
		if err != nil {
			return fmt.Errorf("connect users: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return users.ErrAlreadyConnected
		}
		return nil
	})
}

func (r *UserRepository) Disconnect(ctx context.Context, userID, otherID string) error {
	_, err := r.queryer().Exec(ctx, `
DELETE FROM user_connections
 WHERE (user_id = $1 AND connected_user_id = $2)
    OR (user_id = $2 AND connected_user_id = $1)
`, userID, otherID)
	if err != nil {
		return fmt.Errorf("disconnect users: %w", err)
	}
	return nil
}

func (r *UserRepository) Connections(ctx context.Context, userID string) ([]users.Connection, error) {
	rows, err := r.queryer().Query(ctx, `SELECT`+userColumns+`, c.created_at
  FROM user_connections c
  JOIN users u ON u.id = c.connected_user_id
 WHERE c.user_id = $1
 ORDER BY c.created_at ASC, u.id ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := []users.Connection{}
	for rows.Next() {
		var since time.Time
		u, err := scanUser(rows, &since)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		out = append(out, users.Connection{User: u, Since: since})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return out, nil
}

func (r *UserRepository) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	var ok bool
	err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM user_connections WHERE user_id = $1 AND connected_user_id = $2)
`, userID, otherID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return ok, nil
}

func (r *UserRepository) MutualConnections(ctx context.Context, userID, otherID string) (int, error) {
	var n int
	err := r.queryer().QueryRow(ctx, `
SELECT count(*)
  FROM user_connections a
  JOIN user_connections b ON b.connected_user_id = a.connected_user_id
 WHERE a.user_id = $1 AND b.user_id = $2
`, userID, otherID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mutual connections: %w", err)
	}
	return n, nil
}
