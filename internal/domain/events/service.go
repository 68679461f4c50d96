package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// Actor identifies who is performing an event operation.
type Actor struct {
	ID    string
	Admin bool
}

// CapacityLimit returns the largest capacity an event may declare, or 0 for no limit.
type CapacityLimit func(ctx context.Context) (int, error)

type Service struct {
	repo          Repository
	capacityLimit CapacityLimit
	now           func() time.Time
	logger        zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// WithCapacityLimit installs the system-wide capacity cap.
func (s *Service) WithCapacityLimit(limit CapacityLimit) *Service {
	s.capacityLimit = limit
	return s
}

func (s *Service) Create(ctx context.Context, organizerID string, in CreateInput) (*Event, error) {
	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	e, err := in.Build(id, organizerID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, e.Capacity); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return s.repo.GetByID(ctx, e.ID)
}

// Get loads an event. Views are counted only for authenticated viewers.
func (s *Service) Get(ctx context.Context, id string, viewerID string) (*Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != "" {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("event_id", id).Msg("failed to record event view")
		} else {
			e.Analytics.Views++
		}
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, filters Filters, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, filters, limit, offset)
}

// Search matches active events by title, description, tags, city or venue.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Event, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, validation.New("q", "Search query is required")
	}
	return s.repo.List(ctx, Filters{Status: StatusActive, Query: query}, limit, offset)
}

func (s *Service) Update(ctx context.Context, id string, actor Actor, in UpdateInput) (*Event, error) {
	if in.Capacity != nil {
		if err := s.checkCapacity(ctx, *in.Capacity); err != nil {
			return nil, err
		}
	}

	var promoted int
	e, err := s.repo.Mutate(ctx, id, func(e *Event) ([]Notice, error) {
		if !actor.Admin && !e.IsOrganizedBy(actor.ID) {
			return nil, ErrForbidden
		}
		raised, err := in.Apply(e, s.now().UTC())
		if err != nil {
			return nil, err
		}
		if !raised {
			return nil, nil
		}
		filled := e.FillWaitlist()
		promoted = len(filled)
		return promotionNotices(e, filled), nil
	})
	if err != nil {
		return nil, err
	}
	if promoted > 0 {
		metrics.WaitlistPromotions.Add(float64(promoted))
		s.logger.Info().Str("event_id", id).Int("promoted", promoted).Msg("capacity raised, waitlist promoted")
	}
	return s.repo.GetByID(ctx, e.ID)
}

func (s *Service) Delete(ctx context.Context, id string, actor Actor) error {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Admin && !e.IsOrganizedBy(actor.ID) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// SetStatus is the admin approve/reject transition.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Event, error) {
	if !status.Valid() {
		return nil, validation.New("status", "invalid status")
	}
	return s.repo.SetStatus(ctx, id, status)
}

// Register adds userID to the event, as registered or waitlisted.
func (s *Service) Register(ctx context.Context, id, userID string) (Attendee, error) {
	var record Attendee
	_, err := s.repo.Mutate(ctx, id, func(e *Event) ([]Notice, error) {
		a, err := e.Register(userID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		record = a
		return []Notice{noticeForStatus(e, a)}, nil
	})
	if err != nil {
		s.recordConflict(err)
		return Attendee{}, err
	}
	metrics.Registrations.WithLabelValues(string(record.Status)).Inc()
	s.logger.Info().Str("event_id", id).Str("user_id", userID).Str("status", string(record.Status)).Msg("attendee registered")
	return record, nil
}

// Unregister removes userID and promotes waitlisted attendees into freed spots.
func (s *Service) Unregister(ctx context.Context, id, userID string) (Attendee, []Attendee, error) {
	var (
		removed  Attendee
		promoted []Attendee
	)
	_, err := s.repo.Mutate(ctx, id, func(e *Event) ([]Notice, error) {
		r, p, err := e.Unregister(userID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		removed, promoted = r, p
		notices := []Notice{newNotice(NoticeCancelled, e, userID)}
		return append(notices, promotionNotices(e, p)...), nil
	})
	if err != nil {
		s.recordConflict(err)
		return Attendee{}, nil, err
	}
	if len(promoted) > 0 {
		metrics.WaitlistPromotions.Add(float64(len(promoted)))
	}
	s.logger.Info().Str("event_id", id).Str("user_id", userID).Int("promoted", len(promoted)).Msg("attendee unregistered")
	return removed, promoted, nil
}

func (s *Service) CheckIn(ctx context.Context, id, userID string) (Attendee, error) {
	var record Attendee
	_, err := s.repo.Mutate(ctx, id, func(e *Event) ([]Notice, error) {
		a, err := e.CheckIn(userID, s.now().UTC())
		if err != nil {
			return nil, err
		}
		record = a
		return nil, nil
	})
	if err != nil {
		s.recordConflict(err)
		return Attendee{}, err
	}
	metrics.CheckIns.Inc()
	return record, nil
}

// Attendees lists an event's attendee records. The organizer and admins see
// every record; anyone else sees only records holding a spot.
func (s *Service) Attendees(ctx context.Context, id string, viewer Actor) (*Event, AttendeeList, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, AttendeeList{}, err
	}
	full := viewer.Admin || e.IsOrganizedBy(viewer.ID)
	list := make([]Attendee, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if full || a.Status.HoldsSpot() {
			list = append(list, a)
		}
	}
	out := AttendeeList{EventTitle: e.Title, Attendees: list, TotalCount: len(list)}
	if full {
		registered := e.CountByStatus(AttendeeRegistered)
		attended := e.CountByStatus(AttendeeAttended)
		out.RegisteredCount = &registered
		out.AttendedCount = &attended
	}
	return e, out, nil
}

func (s *Service) Sessions(ctx context.Context, id string) (SessionList, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return SessionList{}, err
	}
	return SessionList{EventTitle: e.Title, Sessions: e.Sessions}, nil
}

// Attending is derived from attendee records; no per-user list is stored.
func (s *Service) Attending(ctx context.Context, userID string) ([]*Event, error) {
	return s.repo.ListAttending(ctx, userID)
}

func (s *Service) Organized(ctx context.Context, userID string) ([]*Event, error) {
	return s.repo.ListByOrganizer(ctx, userID)
}

// CompleteEnded moves active events whose end time has passed to completed.
func (s *Service) CompleteEnded(ctx context.Context) (int64, error) {
	n, err := s.repo.CompleteEnded(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete ended events: %w", err)
	}
	return n, nil
}

func (s *Service) checkCapacity(ctx context.Context, capacity int) error {
	if s.capacityLimit == nil {
		return nil
	}
	limit, err := s.capacityLimit(ctx)
	if err != nil {
		return fmt.Errorf("load capacity limit: %w", err)
	}
	if limit > 0 && capacity > limit {
		return validation.New("capacity", fmt.Sprintf("must be at most %d", limit))
	}
	return nil
}

func (s *Service) recordConflict(err error) {
	if reason := conflictReason(err); reason != "" {
		metrics.RegistrationConflicts.WithLabelValues(reason).Inc()
	}
}
