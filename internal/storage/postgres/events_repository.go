package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *EventRepository) queryer() queryer { return pick(r.pool, r.tx) }

const eventColumns = `
       e.id, e.organizer_id, e.title, e.description, e.category, e.status,
       e.date_time, e.end_date_time, e.location, e.is_virtual, e.virtual_link,
       e.capacity, e.price, e.currency, e.images, e.cover_image, e.tags,
       e.sessions, e.sponsors, e.settings, e.views, e.shares, e.conversion,
       e.created_at, e.updated_at,
       o.name, o.email, o.company, o.job_title, o.profile_image, o.bio`

const eventFrom = `
  FROM events e
  JOIN users o ON o.id = e.organizer_id`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		e         events.Event
		organizer events.Person
	)
	err := row.Scan(
		&e.ID,
		&e.OrganizerID,
		&e.Title,
		&e.Description,
		&e.Category,
		&e.Status,
		&e.DateTime,
		&e.EndDateTime,
		&e.Location,
		&e.IsVirtual,
		&e.VirtualLink,
		&e.Capacity,
		&e.Price,
		&e.Currency,
		&e.Images,
		&e.CoverImage,
		&e.Tags,
		&e.Sessions,
		&e.Sponsors,
		&e.Settings,
		&e.Analytics.Views,
		&e.Analytics.Shares,
		&e.Analytics.RegistrationConversion,
		&e.CreatedAt,
		&e.UpdatedAt,
		&organizer.Name,
		&organizer.Email,
		&organizer.Company,
		&organizer.JobTitle,
		&organizer.ProfileImage,
		&organizer.Bio,
	)
	if err != nil {
		return nil, err
	}
	organizer.ID = e.OrganizerID
	e.Organizer = &organizer
	e.Attendees = []events.Attendee{}
	return &e, nil
}

func (r *EventRepository) Create(ctx context.Context, e *events.Event) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO events (
  id, organizer_id, title, description, category, status, date_time, end_date_time,
  location, is_virtual, virtual_link, capacity, price, currency, images, cover_image,
  tags, sessions, sponsors, settings, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
`,
		e.ID,
		e.OrganizerID,
		e.Title,
		e.Description,
		e.Category,
		e.Status,
		e.DateTime,
		e.EndDateTime,
		e.Location,
		e.IsVirtual,
		e.VirtualLink,
		e.Capacity,
		e.Price,
		e.Currency,
		nonNil(e.Images),
		e.CoverImage,
		nonNil(e.Tags),
		nonNil(e.Sessions),
		nonNil(e.Sponsors),
		e.Settings,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	return r.get(ctx, r.queryer(), id, false)
}

func (r *EventRepository) get(ctx context.Context, q queryer, id string, forUpdate bool) (*events.Event, error) {
	sql := `SELECT` + eventColumns + eventFrom + `
 WHERE e.id = $1`
	if forUpdate {
		sql += `
   FOR UPDATE OF e`
	}
	e, err := scanEvent(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := loadAttendees(ctx, q, []*events.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

const eventFilters = `
 WHERE ($1 = '' OR e.category = $1)
   AND ($2 = '' OR e.status = $2)
   AND ($3 = '' OR e.location->>'city' ILIKE $3 OR e.location->>'country' ILIKE $3 OR e.location->>'venue' ILIKE $3)
   AND ($4 = '' OR e.title ILIKE $4 OR e.description ILIKE $4
        OR e.location->>'city' ILIKE $4 OR e.location->>'venue' ILIKE $4
        OR EXISTS (SELECT 1 FROM unnest(e.tags) AS tag WHERE tag ILIKE $4))
   AND ($5 = '' OR e.organizer_id = $5)
   AND ($6::timestamptz IS NULL OR e.date_time >= $6::timestamptz)
   AND ($7::timestamptz IS NULL OR e.date_time <= $7::timestamptz)
   AND ($8::float8 IS NULL OR e.price >= $8::float8)
   AND ($9::float8 IS NULL OR e.price <= $9::float8)
   AND ($10::boolean IS NULL OR e.is_virtual = $10::boolean)`

func filterArgs(f events.Filters) []any {
	return []any{
		string(f.Category),
		string(f.Status),
		likePattern(f.Location),
		likePattern(f.Query),
		f.OrganizerID,
		f.DateFrom,
		f.DateTo,
		f.PriceMin,
		f.PriceMax,
		f.IsVirtual,
	}
}

// List returns one page of events matching filters, ordered by start time,
// and the total number of matches.
func (r *EventRepository) List(ctx context.Context, filters events.Filters, limit, offset int) ([]*events.Event, int, error) {
	if limit <= 0 {
		limit = 10
	}
	q := r.queryer()
	args := append(filterArgs(filters), limit, offset)
	rows, err := q.Query(ctx, `
SELECT`+eventColumns+`, count(*) OVER ()`+eventFrom+eventFilters+`
 ORDER BY e.date_time ASC, e.id ASC
 LIMIT $11 OFFSET $12
`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := []*events.Event{}
	total := 0
	for rows.Next() {
		var e *events.Event
		e, total, err = scanEventWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan events: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate events: %w", err)
	}
	rows.Close()

	if len(items) == 0 && offset > 0 {
		// The window count is only available on rows; past the last page
		// count separately.
		if err := q.QueryRow(ctx, `SELECT count(*) FROM events e`+eventFilters, filterArgs(filters)...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count events: %w", err)
		}
		return items, total, nil
	}
	if err := loadAttendees(ctx, q, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// scanEventWithTotal scans an event row followed by a count(*) OVER () column.
func scanEventWithTotal(rows pgx.Rows) (*events.Event, int, error) {
	var total int
	e, err := scanEvent(totalRow{rows: rows, total: &total})
	return e, total, err
}

// totalRow appends a destination for the trailing window count.
type totalRow struct {
	rows  pgx.Rows
	total *int
}

func (t totalRow) Scan(dest ...any) error {
	return t.rows.Scan(append(dest, t.total)...)
}

func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*events.Event, error) {
	return r.listWhere(ctx, `e.organizer_id = $1`, `e.created_at DESC`, organizerID)
}

// ListAttending derives a user's attending list from attendee records.
func (r *EventRepository) ListAttending(ctx context.Context, userID string) ([]*events.Event, error) {
	return r.listWhere(ctx, `EXISTS (
       SELECT 1 FROM event_attendees a
        WHERE a.event_id = e.id AND a.user_id = $1 AND a.status <> 'cancelled')`,
		`e.date_time ASC`, userID)
}

// ListAll returns every event with its attendees, for reports and backups.
func (r *EventRepository) ListAll(ctx context.Context) ([]*events.Event, error) {
	return r.listWhere(ctx, `TRUE`, `e.created_at ASC`)
}

func (r *EventRepository) listWhere(ctx context.Context, where, orderBy string, args ...any) ([]*events.Event, error) {
	q := r.queryer()
	rows, err := q.Query(ctx, `SELECT`+eventColumns+eventFrom+`
 WHERE `+where+`
 ORDER BY `+orderBy+`, e.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := []*events.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	rows.Close()

	if err := loadAttendees(ctx, q, items); err != nil {
		return nil, err
	}
	return items, nil
}

// loadAttendees fills the attendee sequence of each event in position order.
func loadAttendees(ctx context.Context, q queryer, list []*events.Event) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*events.Event, len(list))
	ids := make([]string, 0, len(list))
	for _, e := range list {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	rows, err := q.Query(ctx, `
SELECT a.event_id, a.position, a.user_id, a.status, a.registered_at, a.check_in_time, a.ticket_type,
       u.name, u.email, u.company, u.job_title, u.profile_image, u.bio
  FROM event_attendees a
  JOIN users u ON u.id = a.user_id
 WHERE a.event_id = ANY($1)
 ORDER BY a.position ASC
`, ids)
	if err != nil {
		return fmt.Errorf("load attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID string
			a       events.Attendee
			person  events.Person
		)
		if err := rows.Scan(
			&eventID,
			&a.Position,
			&a.UserID,
			&a.Status,
			&a.RegisteredAt,
			&a.CheckInTime,
			&a.TicketType,
			&person.Name,
			&person.Email,
			&person.Company,
			&person.JobTitle,
			&person.ProfileImage,
			&person.Bio,
		); err != nil {
			return fmt.Errorf("scan attendee: %w", err)
		}
		person.ID = a.UserID
		a.User = &person
		if e, ok := byID[eventID]; ok {
			e.Attendees = append(e.Attendees, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attendees: %w", err)
	}
	return nil
}

// Mutate locks the event row, hands the event to fn and persists whatever
// fn changed, together with the notices it returns, in one transaction.
func (r *EventRepository) Mutate(ctx context.Context, id string, fn events.MutationFunc) (result *events.Event, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, events.ErrEventNotFound) && !events.IsStateConflict(err) {
			metrics.RecordQuery("mutate_event", start, err)
		}
	}()

	err = inTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		e, err := r.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		before := make([]events.Attendee, len(e.Attendees))
		copy(before, e.Attendees)

		notices, err := fn(e)
		if err != nil {
			return err
		}

		if err := updateEventRow(ctx, tx, e); err != nil {
			return err
		}
		if err := applyAttendeeDiff(ctx, tx, e, before); err != nil {
			return err
		}
		if err := insertNotices(ctx, tx, notices); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func updateEventRow(ctx context.Context, tx pgx.Tx, e *events.Event) error {
	_, err := tx.Exec(ctx, `
UPDATE events SET
  title = $2, description = $3, category = $4, status = $5, date_time = $6, end_date_time = $7,
  location = $8, is_virtual = $9, virtual_link = $10, capacity = $11, price = $12, currency = $13,
  images = $14, cover_image = $15, tags = $16, sessions = $17, sponsors = $18, settings = $19,
  updated_at = $20
 WHERE id = $1
`,
		e.ID,
		e.Title,
		e.Description,
		e.Category,
		e.Status,
		e.DateTime,
		e.EndDateTime,
		e.Location,
		e.IsVirtual,
		e.VirtualLink,
		e.Capacity,
		e.Price,
		e.Currency,
		nonNil(e.Images),
		e.CoverImage,
		nonNil(e.Tags),
		nonNil(e.Sessions),
		nonNil(e.Sponsors),
		e.Settings,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// applyAttendeeDiff rewrites attendee rows so they match e.Attendees.
// Stored records are matched by position; records without one are new.
// Deletes run first so a user whose old record was replaced does not trip
// the (event_id, user_id) unique constraint.
func applyAttendeeDiff(ctx context.Context, tx pgx.Tx, e *events.Event, before []events.Attendee) error {
	kept := make(map[int64]events.Attendee, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.Position != 0 {
			kept[a.Position] = a
		}
	}

	var removed []int64
	for _, old := range before {
		if _, ok := kept[old.Position]; !ok {
			removed = append(removed, old.Position)
		}
	}
	if len(removed) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM event_attendees WHERE event_id = $1 AND position = ANY($2)`, e.ID, removed); err != nil {
			return fmt.Errorf("delete attendees: %w", err)
		}
	}

	for _, old := range before {
		now, ok := kept[old.Position]
		if !ok || attendeeUnchanged(old, now) {
			continue
		}
		if _, err := tx.Exec(ctx, `
UPDATE event_attendees SET status = $3, check_in_time = $4, ticket_type = $5
 WHERE event_id = $1 AND position = $2
`, e.ID, now.Position, now.Status, now.CheckInTime, now.TicketType); err != nil {
			return fmt.Errorf("update attendee: %w", err)
		}
	}

	for i := range e.Attendees {
		a := &e.Attendees[i]
		if a.Position != 0 {
			continue
		}
		err := tx.QueryRow(ctx, `
INSERT INTO event_attendees (event_id, user_id, status, registered_at, check_in_time, ticket_type)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING position
`, e.ID, a.UserID, a.Status, a.RegisteredAt, a.CheckInTime, a.TicketType).Scan(&a.Position)
		if isUniqueViolation(err, "event_attendees_event_user_key") {
			return events.ErrAlreadyRegistered
		}
		if err != nil {
			return fmt.Errorf("insert attendee: %w", err)
		}
	}
	return nil
}

func attendeeUnchanged(a, b events.Attendee) bool {
	if a.Status != b.Status || a.TicketType != b.TicketType {
		return false
	}
	switch {
	case a.CheckInTime == nil && b.CheckInTime == nil:
		return true
	case a.CheckInTime == nil || b.CheckInTime == nil:
		return false
	default:
		return a.CheckInTime.Equal(*b.CheckInTime)
	}
}

// insertNotices queues notices in the outbox, addressed to the user's
// current email.
func insertNotices(ctx context.Context, tx pgx.Tx, notices []events.Notice) error {
	for _, n := range notices {
		_, err := tx.Exec(ctx, `
INSERT INTO notification_outbox (kind, event_id, user_id, recipient, recipient_name, payload)
SELECT $1::text, $2::text, u.id, u.email, u.name, $4::jsonb
  FROM users u
 WHERE u.id = $3
`, n.Kind, n.EventID, n.UserID, n)
		if err != nil {
			return fmt.Errorf("enqueue notice: %w", err)
		}
	}
	return nil
}

func (r *EventRepository) SetStatus(ctx context.Context, id string, status events.Status) (*events.Event, error) {
	tag, err := r.queryer().Exec(ctx, `UPDATE events SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return nil, fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, events.ErrEventNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *EventRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.queryer().Exec(ctx, `UPDATE events SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrEventNotFound
	}
	return nil
}

// CompleteEnded marks active events whose end time has passed as completed.
func (r *EventRepository) CompleteEnded(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events SET status = 'completed', updated_at = $1
 WHERE status = 'active' AND end_date_time < $1
`, now)
	if err != nil {
		return 0, fmt.Errorf("complete ended events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// nonNil keeps empty JSON arrays from being stored as null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
