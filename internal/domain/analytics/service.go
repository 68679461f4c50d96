package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

// EventSource is the read side of event storage used by reports.
type EventSource interface {
	GetByID(ctx context.Context, id string) (*events.Event, error)
	ListAttending(ctx context.Context, userID string) ([]*events.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*events.Event, error)
	ListAll(ctx context.Context) ([]*events.Event, error)
}

// UserSource is the read side of user storage used by reports.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
	Connections(ctx context.Context, userID string) ([]users.Connection, error)
	ListAll(ctx context.Context) ([]*users.User, error)
	CountActive(ctx context.Context) (int, error)
	ConnectionCounts(ctx context.Context) (map[string]int, error)
}

type Service struct {
	events EventSource
	users  UserSource
	now    func() time.Time
}

func NewService(eventSource EventSource, userSource UserSource) *Service {
	return &Service{events: eventSource, users: userSource, now: time.Now}
}

func (s *Service) Attended(ctx context.Context, userID string) (AttendedReport, error) {
	list, err := s.events.ListAttending(ctx, userID)
	if err != nil {
		return AttendedReport{}, fmt.Errorf("list attending: %w", err)
	}
	return Attended(list, s.now()), nil
}

func (s *Service) ConnectionGrowth(ctx context.Context, userID string) (ConnectionGrowthReport, error) {
	conns, err := s.users.Connections(ctx, userID)
	if err != nil {
		return ConnectionGrowthReport{}, fmt.Errorf("list connections: %w", err)
	}
	return ConnectionGrowth(conns), nil
}

func (s *Service) Engagement(ctx context.Context, userID string) (EngagementReport, error) {
	var (
		u                    *users.User
		attending, organized []*events.Event
		conns                []users.Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		u, err = s.users.GetByID(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		attending, err = s.events.ListAttending(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		organized, err = s.events.ListByOrganizer(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		conns, err = s.users.Connections(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return EngagementReport{}, err
	}
	return Engagement(u, len(attending), len(organized), len(conns)), nil
}

// Event reports on one event. Only its organizer may see it.
func (s *Service) Event(ctx context.Context, eventID, userID string) (EventReport, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return EventReport{}, err
	}
	if !e.IsOrganizedBy(userID) {
		return EventReport{}, events.ErrForbidden
	}
	return Event(e), nil
}

func (s *Service) Organizer(ctx context.Context, userID string) (OrganizerReport, error) {
	list, err := s.events.ListByOrganizer(ctx, userID)
	if err != nil {
		return OrganizerReport{}, fmt.Errorf("list organized: %w", err)
	}
	return Organizer(list, s.now()), nil
}

func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	var (
		active int
		all    []*events.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = s.users.CountActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		all, err = s.events.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, fmt.Errorf("load dashboard: %w", err)
	}
	return Dashboard(active, all, s.now()), nil
}

func (s *Service) AdminEvents(ctx context.Context) (AdminEventReport, error) {
	all, err := s.events.ListAll(ctx)
	if err != nil {
		return AdminEventReport{}, fmt.Errorf("list events: %w", err)
	}
	return AdminEvents(all), nil
}

func (s *Service) AdminUsers(ctx context.Context) (AdminUserReport, error) {
	var (
		all       []*users.User
		allEvents []*events.Event
		counts    map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		all, err = s.users.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		allEvents, err = s.events.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.users.ConnectionCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminUserReport{}, fmt.Errorf("load user analytics: %w", err)
	}
	return AdminUsers(all, allEvents, counts, s.now()), nil
}

func (s *Service) Revenue(ctx context.Context) (RevenueReport, error) {
	all, err := s.events.ListAll(ctx)
	if err != nil {
		return RevenueReport{}, fmt.Errorf("list events: %w", err)
	}
	return Revenue(all), nil
}

func (s *Service) Overview(ctx context.Context) (OverviewReport, error) {
	var (
		all       []*users.User
		allEvents []*events.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		all, err = s.users.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		allEvents, err = s.events.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return OverviewReport{}, fmt.Errorf("load overview: %w", err)
	}
	return Overview(all, allEvents, s.now()), nil
}
