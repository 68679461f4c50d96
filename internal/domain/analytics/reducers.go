// Package analytics turns fetched users and events into report structs. The
// reducers are pure so they can be tested without a database; Service does
// the fetching.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

const (
	monthLayout = "January 2006"
	dayLayout   = "Mon Jan 02 2006"

	profileFields = 10
	topRevenueN   = 10
	topPerformerN = 3
	growthMonths  = 6
)

func revenue(e *events.Event) float64 {
	return e.Price * float64(e.FilledSpots())
}

func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func earns(e *events.Event) bool {
	return e.Status == events.StatusActive || e.Status == events.StatusCompleted
}

type AttendedReport struct {
	TotalEventsAttended int            `json:"totalEventsAttended"`
	EventsByCategory    map[string]int `json:"eventsByCategory"`
	EventsByMonth       map[string]int `json:"eventsByMonth"`
	TotalSpent          float64        `json:"totalSpent"`
	UpcomingEvents      int            `json:"upcomingEvents"`
}

// Attended summarizes the events a user holds a spot in.
func Attended(list []*events.Event, now time.Time) AttendedReport {
	r := AttendedReport{
		TotalEventsAttended: len(list),
		EventsByCategory:    map[string]int{},
		EventsByMonth:       map[string]int{},
	}
	for _, e := range list {
		r.EventsByCategory[string(e.Category)]++
		r.EventsByMonth[e.DateTime.Format(monthLayout)]++
		r.TotalSpent += e.Price
		if e.DateTime.After(now) && e.Status == events.StatusActive {
			r.UpcomingEvents++
		}
	}
	return r
}

type ConnectionGrowthReport struct {
	TotalConnections           int            `json:"totalConnections"`
	ConnectionsByMonth         map[string]int `json:"connectionsByMonth"`
	AverageConnectionsPerMonth int            `json:"averageConnectionsPerMonth"`
}

// ConnectionGrowth buckets connections by the month the edge was created.
func ConnectionGrowth(conns []users.Connection) ConnectionGrowthReport {
	r := ConnectionGrowthReport{ConnectionsByMonth: map[string]int{}}
	for _, c := range conns {
		r.ConnectionsByMonth[c.Since.Format(monthLayout)]++
		r.TotalConnections++
	}
	if r.TotalConnections > 0 {
		r.AverageConnectionsPerMonth = round(float64(r.TotalConnections) / float64(len(r.ConnectionsByMonth)))
	}
	return r
}

type EngagementReport struct {
	ProfileCompleteness int        `json:"profileCompleteness"`
	EventsAttended      int        `json:"eventsAttended"`
	EventsOrganized     int        `json:"eventsOrganized"`
	TotalConnections    int        `json:"totalConnections"`
	LastActive          *time.Time `json:"lastActive"`
	EngagementScore     int        `json:"engagementScore"`
}

// ProfileCompleteness is the percentage of the ten profile signals present.
func ProfileCompleteness(u *users.User, attended int) int {
	signals := []bool{
		u.Name != "",
		u.Email != "",
		u.Company != "",
		u.JobTitle != "",
		u.Bio != "",
		u.Phone != "",
		u.ProfileImage != "",
		len(u.Interests) > 0,
		u.SocialLinks != (users.SocialLinks{}),
		attended > 0,
	}
	done := 0
	for _, ok := range signals {
		if ok {
			done++
		}
	}
	return round(float64(done) / profileFields * 100)
}

// Engagement scores a user out of 100: up to 30 for attending, 20 for
// organizing, 25 for connections and 25 for profile completeness.
func Engagement(u *users.User, attended, organized, connections int) EngagementReport {
	r := EngagementReport{
		ProfileCompleteness: ProfileCompleteness(u, attended),
		EventsAttended:      attended,
		EventsOrganized:     organized,
		TotalConnections:    connections,
		LastActive:          u.LastLogin,
	}
	score := math.Min(float64(attended*5), 30) +
		math.Min(float64(organized*10), 20) +
		math.Min(float64(connections*2), 25) +
		math.Min(float64(r.ProfileCompleteness)*0.25, 25)
	r.EngagementScore = round(score)
	return r
}

type RevenueSummary struct {
	Total       float64 `json:"total"`
	PerAttendee float64 `json:"perAttendee"`
}

type CapacitySummary struct {
	Total       int `json:"total"`
	Filled      int `json:"filled"`
	Utilization int `json:"utilization"`
}

type EventReport struct {
	TotalRegistrations int             `json:"totalRegistrations"`
	AttendeesByStatus  map[string]int  `json:"attendeesByStatus"`
	AttendeesByCompany map[string]int  `json:"attendeesByCompany"`
	RegistrationTrend  map[string]int  `json:"registrationTrend"`
	Revenue            RevenueSummary  `json:"revenue"`
	Capacity           CapacitySummary `json:"capacity"`
	Views              int             `json:"views"`
	Shares             int             `json:"shares"`
}

// Event reports on one event for its organizer.
func Event(e *events.Event) EventReport {
	filled := e.FilledSpots()
	r := EventReport{
		TotalRegistrations: len(e.Attendees),
		AttendeesByStatus: map[string]int{
			string(events.AttendeeRegistered): e.CountByStatus(events.AttendeeRegistered),
			string(events.AttendeeWaitlisted): e.CountByStatus(events.AttendeeWaitlisted),
			string(events.AttendeeAttended):   e.CountByStatus(events.AttendeeAttended),
			string(events.AttendeeCancelled):  e.CountByStatus(events.AttendeeCancelled),
		},
		AttendeesByCompany: map[string]int{},
		RegistrationTrend:  map[string]int{},
		Revenue:            RevenueSummary{Total: revenue(e), PerAttendee: e.Price},
		Capacity:           CapacitySummary{Total: e.Capacity, Filled: filled},
		Views:              e.Analytics.Views,
		Shares:             e.Analytics.Shares,
	}
	if e.Capacity > 0 {
		r.Capacity.Utilization = round(float64(filled) / float64(e.Capacity) * 100)
	}
	for _, a := range e.Attendees {
		if a.User != nil && a.User.Company != "" {
			r.AttendeesByCompany[a.User.Company]++
		}
		r.RegistrationTrend[a.RegisteredAt.Format(dayLayout)]++
	}
	return r
}

type TopEvent struct {
	ID        string  `json:"id,omitempty"`
	Title     string  `json:"title"`
	Attendees int     `json:"attendees"`
	Revenue   float64 `json:"revenue"`
}

func topEvent(e *events.Event) TopEvent {
	return TopEvent{ID: e.ID, Title: e.Title, Attendees: e.FilledSpots(), Revenue: revenue(e)}
}

func countByStatus(list []*events.Event) map[string]int {
	counts := map[string]int{}
	for _, s := range events.Statuses {
		counts[string(s)] = 0
	}
	for _, e := range list {
		counts[string(e.Status)]++
	}
	return counts
}

type OrganizerReport struct {
	TotalEvents        int            `json:"totalEvents"`
	EventsByStatus     map[string]int `json:"eventsByStatus"`
	TotalAttendees     int            `json:"totalAttendees"`
	TotalRevenue       float64        `json:"totalRevenue"`
	AverageAttendance  int            `json:"averageAttendance"`
	TopPerformingEvent *TopEvent      `json:"topPerformingEvent"`
	UpcomingEvents     int            `json:"upcomingEvents"`
}

// Organizer summarizes the events a user organizes. AverageAttendance is the
// mean capacity utilization of completed events.
func Organizer(list []*events.Event, now time.Time) OrganizerReport {
	r := OrganizerReport{
		TotalEvents:    len(list),
		EventsByStatus: countByStatus(list),
	}
	best := 0
	utilization := 0.0
	for _, e := range list {
		filled := e.FilledSpots()
		r.TotalAttendees += filled
		r.TotalRevenue += revenue(e)
		if filled > best {
			best = filled
			top := topEvent(e)
			r.TopPerformingEvent = &top
		}
		if e.DateTime.After(now) && e.Status == events.StatusActive {
			r.UpcomingEvents++
		}
		if e.Status == events.StatusCompleted && e.Capacity > 0 {
			utilization += float64(filled) / float64(e.Capacity) * 100
		}
	}
	if completed := r.EventsByStatus[string(events.StatusCompleted)]; completed > 0 {
		r.AverageAttendance = round(utilization / float64(completed))
	}
	return r
}

type DashboardStats struct {
	TotalUsers         int     `json:"totalUsers"`
	TotalEvents        int     `json:"totalEvents"`
	ActiveEvents       int     `json:"activeEvents"`
	TotalRevenue       float64 `json:"totalRevenue"`
	MonthlyRevenue     float64 `json:"monthlyRevenue"`
	TotalRegistrations int     `json:"totalRegistrations"`
	CompletedEvents    int     `json:"completedEvents"`
	DraftEvents        int     `json:"draftEvents"`
}

// Dashboard computes the admin headline numbers. Monthly revenue covers
// earning events dated on or after the first day of now's month.
func Dashboard(activeUsers int, all []*events.Event, now time.Time) DashboardStats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	s := DashboardStats{TotalUsers: activeUsers, TotalEvents: len(all)}
	for _, e := range all {
		switch e.Status {
		case events.StatusActive:
			s.ActiveEvents++
		case events.StatusCompleted:
			s.CompletedEvents++
		case events.StatusDraft:
			s.DraftEvents++
		}
		if !earns(e) {
			continue
		}
		s.TotalRevenue += revenue(e)
		s.TotalRegistrations += e.FilledSpots()
		if !e.DateTime.Before(monthStart) {
			s.MonthlyRevenue += revenue(e)
		}
	}
	return s
}

type AdminEventReport struct {
	TotalEvents      int            `json:"totalEvents"`
	EventsByStatus   map[string]int `json:"eventsByStatus"`
	EventsByCategory map[string]int `json:"eventsByCategory"`
	AverageAttendees int            `json:"averageAttendees"`
	TotalRevenue     float64        `json:"totalRevenue"`
}

// AdminEvents reports across all events. AverageAttendees counts only
// checked-in attendees.
func AdminEvents(all []*events.Event) AdminEventReport {
	r := AdminEventReport{
		TotalEvents:      len(all),
		EventsByStatus:   countByStatus(all),
		EventsByCategory: map[string]int{},
	}
	attended := 0
	for _, e := range all {
		r.EventsByCategory[string(e.Category)]++
		attended += e.CountByStatus(events.AttendeeAttended)
		r.TotalRevenue += revenue(e)
	}
	if len(all) > 0 {
		r.AverageAttendees = round(float64(attended) / float64(len(all)))
	}
	return r
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Demographics struct {
	ByCompany  map[string]int `json:"byCompany"`
	ByJobTitle map[string]int `json:"byJobTitle"`
}

type UserEngagement struct {
	TotalConnections     int `json:"totalConnections"`
	AverageEventsPerUser int `json:"averageEventsPerUser"`
}

type AdminUserReport struct {
	TotalUsers   int            `json:"totalUsers"`
	ActiveUsers  int            `json:"activeUsers"`
	UserGrowth   []MonthCount   `json:"userGrowth"`
	Demographics Demographics   `json:"demographics"`
	Engagement   UserEngagement `json:"engagement"`
}

// AdminUsers reports across all users. connectionCounts maps user id to its
// number of connections; attendance is derived from the events' attendee records.
func AdminUsers(all []*users.User, allEvents []*events.Event, connectionCounts map[string]int, now time.Time) AdminUserReport {
	r := AdminUserReport{
		TotalUsers:   len(all),
		UserGrowth:   userGrowth(all, now),
		Demographics: Demographics{ByCompany: map[string]int{}, ByJobTitle: map[string]int{}},
	}
	for _, u := range all {
		if u.IsActive {
			r.ActiveUsers++
		}
		if u.Company != "" {
			r.Demographics.ByCompany[u.Company]++
		}
		if u.JobTitle != "" {
			r.Demographics.ByJobTitle[u.JobTitle]++
		}
		r.Engagement.TotalConnections += connectionCounts[u.ID]
	}
	if len(all) > 0 {
		spots := 0
		for _, e := range allEvents {
			spots += e.FilledSpots()
		}
		r.Engagement.AverageEventsPerUser = round(float64(spots) / float64(len(all)))
	}
	return r
}

// userGrowth is the cumulative number of accounts at the end of each of the
// last growthMonths months, oldest first.
func userGrowth(all []*users.User, now time.Time) []MonthCount {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(growthMonths - 1), 0)
	out := make([]MonthCount, 0, growthMonths)
	for i := 0; i < growthMonths; i++ {
		start := first.AddDate(0, i, 0)
		end := start.AddDate(0, 1, 0)
		n := 0
		for _, u := range all {
			if u.CreatedAt.Before(end) {
				n++
			}
		}
		out = append(out, MonthCount{Month: start.Format(monthLayout), Count: n})
	}
	return out
}

type RevenueReport struct {
	TotalRevenue      float64            `json:"totalRevenue"`
	MonthlyRevenue    map[string]float64 `json:"monthlyRevenue"`
	RevenueByCategory map[string]float64 `json:"revenueByCategory"`
	TopRevenueEvents  []TopEvent         `json:"topRevenueEvents"`
}

// Revenue reports on active and completed events.
func Revenue(all []*events.Event) RevenueReport {
	r := RevenueReport{
		MonthlyRevenue:    map[string]float64{},
		RevenueByCategory: map[string]float64{},
		TopRevenueEvents:  []TopEvent{},
	}
	for _, e := range all {
		if !earns(e) {
			continue
		}
		amount := revenue(e)
		r.TotalRevenue += amount
		r.MonthlyRevenue[e.DateTime.Format(monthLayout)] += amount
		r.RevenueByCategory[string(e.Category)] += amount
		r.TopRevenueEvents = append(r.TopRevenueEvents, topEvent(e))
	}
	sort.SliceStable(r.TopRevenueEvents, func(i, j int) bool {
		return r.TopRevenueEvents[i].Revenue > r.TopRevenueEvents[j].Revenue
	})
	if len(r.TopRevenueEvents) > topRevenueN {
		r.TopRevenueEvents = r.TopRevenueEvents[:topRevenueN]
	}
	return r
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type OverviewReport struct {
	UserGrowth      []MonthCount    `json:"userGrowth"`
	EventCategories []CategoryCount `json:"eventCategories"`
	TopPerformers   []TopEvent      `json:"topPerformers"`
}

// Overview is the admin analytics landing page: account growth, the category
// mix of active events and the best attended events.
func Overview(all []*users.User, allEvents []*events.Event, now time.Time) OverviewReport {
	r := OverviewReport{
		UserGrowth:      userGrowth(all, now),
		EventCategories: []CategoryCount{},
		TopPerformers:   []TopEvent{},
	}

	byCategory := map[events.Category]int{}
	for _, e := range allEvents {
		if e.Status == events.StatusActive {
			byCategory[e.Category]++
		}
		r.TopPerformers = append(r.TopPerformers, topEvent(e))
	}
	for _, c := range events.Categories {
		if n := byCategory[c]; n > 0 {
			r.EventCategories = append(r.EventCategories, CategoryCount{Category: string(c), Count: n})
		}
	}
	sort.SliceStable(r.EventCategories, func(i, j int) bool {
		return r.EventCategories[i].Count > r.EventCategories[j].Count
	})

	sort.SliceStable(r.TopPerformers, func(i, j int) bool {
		return r.TopPerformers[i].Attendees > r.TopPerformers[j].Attendees
	})
	if len(r.TopPerformers) > topPerformerN {
		r.TopPerformers = r.TopPerformers[:topPerformerN]
	}
	return r
}
