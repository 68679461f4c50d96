package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

var now = time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)

func attendees(statuses ...events.AttendeeStatus) []events.Attendee {
	out := make([]events.Attendee, len(statuses))
	for i, s := range statuses {
		out[i] = events.Attendee{UserID: fmt.Sprintf("u%d", i), Status: s, RegisteredAt: now}
	}
	return out
}

func event(id string, status events.Status, category events.Category, price float64, capacity int, when time.Time, list []events.Attendee) *events.Event {
	return &events.Event{
		ID:        id,
		Title:     "Event " + id,
		Status:    status,
		Category:  category,
		Price:     price,
		Capacity:  capacity,
		DateTime:  when,
		Attendees: list,
	}
}

const (
	reg  = events.AttendeeRegistered
	wait = events.AttendeeWaitlisted
	att  = events.AttendeeAttended
)

func TestAttended(t *testing.T) {
	list := []*events.Event{
		event("1", events.StatusActive, events.CategoryWorkshop, 10, 5, now.AddDate(0, 1, 0), nil),
		event("2", events.StatusCompleted, events.CategoryWorkshop, 5, 5, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), nil),
		event("3", events.StatusCancelled, events.CategorySocial, 0, 5, now.AddDate(0, 0, 1), nil),
	}

	r := Attended(list, now)

	assert.Equal(t, 3, r.TotalEventsAttended)
	assert.Equal(t, 2, r.EventsByCategory["workshop"])
	assert.Equal(t, 1, r.EventsByMonth["January 2026"])
	assert.Equal(t, 15.0, r.TotalSpent)
	assert.Equal(t, 1, r.UpcomingEvents)
}

func TestConnectionGrowth(t *testing.T) {
	conns := []users.Connection{
		{Since: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
		{Since: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)},
		{Since: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	r := ConnectionGrowth(conns)

	assert.Equal(t, 3, r.TotalConnections)
	assert.Equal(t, map[string]int{"January 2026": 2, "March 2026": 1}, r.ConnectionsByMonth)
	assert.Equal(t, 2, r.AverageConnectionsPerMonth) // 1.5 rounds half up

	assert.Zero(t, ConnectionGrowth(nil).AverageConnectionsPerMonth)
}

func TestEngagement(t *testing.T) {
	u := &users.User{
		Name:      "Ada",
		Email:     "ada@example.com",
		Company:   "Acme",
		JobTitle:  "Engineer",
		Interests: []string{"go"},
	}

	r := Engagement(u, 2, 1, 20)

	// 6 of 10 signals (attended counts as one)
	assert.Equal(t, 60, r.ProfileCompleteness)
	// min(10,30) + min(10,20) + min(40,25) + min(15,25)
	assert.Equal(t, 60, r.EngagementScore)

	maxed := Engagement(u, 100, 100, 100)
	assert.LessOrEqual(t, maxed.EngagementScore, 100)
}

func TestEventReport(t *testing.T) {
	list := attendees(reg, reg, att, wait)
	list[0].User = &events.Person{Company: "Acme"}
	list[1].User = &events.Person{Company: "Acme"}
	list[2].User = &events.Person{}
	e := event("1", events.StatusActive, events.CategoryConference, 20, 4, now, list)
	e.Analytics.Views = 7

	r := Event(e)

	assert.Equal(t, 4, r.TotalRegistrations)
	assert.Equal(t, 2, r.AttendeesByStatus["registered"])
	assert.Equal(t, 1, r.AttendeesByStatus["waitlisted"])
	assert.Equal(t, 0, r.AttendeesByStatus["cancelled"])
	assert.Equal(t, map[string]int{"Acme": 2}, r.AttendeesByCompany)
	assert.Equal(t, map[string]int{"Fri May 15 2026": 4}, r.RegistrationTrend)
	assert.Equal(t, 60.0, r.Revenue.Total)
	assert.Equal(t, CapacitySummary{Total: 4, Filled: 3, Utilization: 75}, r.Capacity)
	assert.Equal(t, 7, r.Views)
}

func TestOrganizer(t *testing.T) {
	list := []*events.Event{
		event("1", events.StatusCompleted, events.CategoryWorkshop, 10, 4, now.AddDate(0, -1, 0), attendees(att, att)),
		event("2", events.StatusCompleted, events.CategoryWorkshop, 10, 2, now.AddDate(0, -2, 0), attendees(att, reg)),
		event("3", events.StatusActive, events.CategorySocial, 0, 10, now.AddDate(0, 1, 0), attendees(reg, reg, reg, wait)),
		event("4", events.StatusDraft, events.CategorySocial, 0, 10, now.AddDate(0, 1, 0), nil),
	}

	r := Organizer(list, now)

	assert.Equal(t, 4, r.TotalEvents)
	assert.Equal(t, 2, r.EventsByStatus["completed"])
	assert.Equal(t, 1, r.EventsByStatus["draft"])
	assert.Equal(t, 0, r.EventsByStatus["cancelled"])
	assert.Equal(t, 7, r.TotalAttendees)
	assert.Equal(t, 40.0, r.TotalRevenue)
	assert.Equal(t, 75, r.AverageAttendance) // (50 + 100) / 2
	require.NotNil(t, r.TopPerformingEvent)
	assert.Equal(t, "Event 3", r.TopPerformingEvent.Title)
	assert.Equal(t, 1, r.UpcomingEvents)
}

func TestDashboard(t *testing.T) {
	all := []*events.Event{
		event("1", events.StatusActive, events.CategoryWorkshop, 10, 10, now.AddDate(0, 0, 3), attendees(reg, reg)),
		event("2", events.StatusCompleted, events.CategoryWorkshop, 5, 10, now.AddDate(0, -2, 0), attendees(att)),
		event("3", events.StatusDraft, events.CategoryWorkshop, 100, 10, now, attendees(reg)),
		event("4", events.StatusCancelled, events.CategoryWorkshop, 100, 10, now, attendees(reg)),
	}

	s := Dashboard(12, all, now)

	assert.Equal(t, DashboardStats{
		TotalUsers:         12,
		TotalEvents:        4,
		ActiveEvents:       1,
		TotalRevenue:       25,
		MonthlyRevenue:     20,
		TotalRegistrations: 3,
		CompletedEvents:    1,
		DraftEvents:        1,
	}, s)
}

func TestRevenueTopTen(t *testing.T) {
	var all []*events.Event
	for i := 0; i < 12; i++ {
		all = append(all, event(fmt.Sprint(i), events.StatusActive, events.CategorySeminar, float64(i), 10, now, attendees(reg)))
	}
	all = append(all, event("draft", events.StatusDraft, events.CategorySeminar, 999, 10, now, attendees(reg)))

	r := Revenue(all)

	require.Len(t, r.TopRevenueEvents, 10)
	assert.Equal(t, 11.0, r.TopRevenueEvents[0].Revenue)
	assert.Equal(t, 66.0, r.TotalRevenue)
	assert.Equal(t, 66.0, r.RevenueByCategory["seminar"])
	assert.Equal(t, 66.0, r.MonthlyRevenue["May 2026"])
}

func TestAdminEventsAndUsers(t *testing.T) {
	all := []*events.Event{
		event("1", events.StatusActive, events.CategoryWorkshop, 10, 10, now, attendees(att, att, reg)),
		event("2", events.StatusDraft, events.CategorySocial, 0, 10, now, attendees(att)),
	}
	ev := AdminEvents(all)
	assert.Equal(t, 2, ev.AverageAttendees) // 3 attended / 2 events = 1.5
	assert.Equal(t, 30.0, ev.TotalRevenue)
	assert.Equal(t, 1, ev.EventsByCategory["social"])

	people := []*users.User{
		{ID: "a", Company: "Acme", JobTitle: "Dev", IsActive: true, CreatedAt: now.AddDate(0, -3, 0)},
		{ID: "b", Company: "Acme", IsActive: false, CreatedAt: now.AddDate(0, -1, 0)},
	}
	us := AdminUsers(people, all, map[string]int{"a": 3, "b": 1}, now)
	assert.Equal(t, 2, us.TotalUsers)
	assert.Equal(t, 1, us.ActiveUsers)
	assert.Equal(t, 2, us.Demographics.ByCompany["Acme"])
	assert.Equal(t, 4, us.Engagement.TotalConnections)
	assert.Equal(t, 2, us.Engagement.AverageEventsPerUser)
	require.Len(t, us.UserGrowth, growthMonths)
	assert.Equal(t, "May 2026", us.UserGrowth[growthMonths-1].Month)
	assert.Equal(t, 2, us.UserGrowth[growthMonths-1].Count)
	assert.Equal(t, 0, us.UserGrowth[0].Count)
}

func TestOverview(t *testing.T) {
	all := []*events.Event{
		event("1", events.StatusActive, events.CategoryWorkshop, 0, 10, now, attendees(reg)),
		event("2", events.StatusActive, events.CategoryWorkshop, 0, 10, now, attendees(reg, reg, reg)),
		event("3", events.StatusActive, events.CategorySocial, 0, 10, now, attendees(reg, reg)),
		event("4", events.StatusCompleted, events.CategoryConference, 0, 10, now, attendees(att, att, att, att)),
	}

	r := Overview(nil, all, now)

	assert.Equal(t, []CategoryCount{{Category: "workshop", Count: 2}, {Category: "social", Count: 1}}, r.EventCategories)
	require.Len(t, r.TopPerformers, 3)
	assert.Equal(t, "4", r.TopPerformers[0].ID)
	assert.Equal(t, "2", r.TopPerformers[1].ID)
}

type stubEvents struct {
	e *events.Event
}

func (s stubEvents) GetByID(context.Context, string) (*events.Event, error) { return s.e, nil }
func (s stubEvents) ListAttending(context.Context, string) ([]*events.Event, error) {
	return nil, nil
}
func (s stubEvents) ListByOrganizer(context.Context, string) ([]*events.Event, error) {
	return nil, nil
}
func (s stubEvents) ListAll(context.Context) ([]*events.Event, error) { return nil, nil }

func TestServiceEventRequiresOrganizer(t *testing.T) {
	e := event("1", events.StatusActive, events.CategoryWorkshop, 0, 10, now, nil)
	e.OrganizerID = "owner"
	svc := NewService(stubEvents{e: e}, nil)

	_, err := svc.Event(context.Background(), "1", "someone-else")
	assert.True(t, errors.Is(err, events.ErrForbidden))

	_, err = svc.Event(context.Background(), "1", "owner")
	assert.NoError(t, err)
}
