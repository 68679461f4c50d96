package events

import (
	"context"
	"time"
)

// MutationFunc changes a locked event in memory and returns the notices that
// must be enqueued with the change. Returning an error aborts the change.
type MutationFunc func(e *Event) ([]Notice, error)

// Repository abstracts event persistence. Implementations must run Mutate
// under a per-event exclusive lock so that concurrent registrations are
// serialized and capacity checks see committed state.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filters Filters, limit, offset int) ([]*Event, int, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*Event, error)
	ListAttending(ctx context.Context, userID string) ([]*Event, error)
	Mutate(ctx context.Context, id string, fn MutationFunc) (*Event, error)
	SetStatus(ctx context.Context, id string, status Status) (*Event, error)
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CompleteEnded(ctx context.Context, now time.Time) (int64, error)
}
