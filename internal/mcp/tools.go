package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
)

const (
	defaultLimit     = 20
	maxLimit         = 100
	upcomingURI      = "events://upcoming"
	upcomingMIMEType = "application/json"
)

// EventTools implements the MCP tools. Attendee lists are never returned;
// agents see counts only.
type EventTools struct {
	reader  EventReader
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

func NewEventTools(reader EventReader, baseURL string, logger zerolog.Logger) *EventTools {
	return &EventTools{
		reader:  reader,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// eventItem is the agent-facing event shape.
type eventItem struct {
	ID             string    `json:"id"`
	URL            string    `json:"url,omitempty"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	Starts         time.Time `json:"starts"`
	Ends           time.Time `json:"ends"`
	Venue          string    `json:"venue,omitempty"`
	City           string    `json:"city,omitempty"`
	Country        string    `json:"country,omitempty"`
	IsVirtual      bool      `json:"isVirtual"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency"`
	Capacity       int       `json:"capacity"`
	AvailableSpots int       `json:"availableSpots"`
	Tags           []string  `json:"tags,omitempty"`
}

type eventDetail struct {
	eventItem
	Description      string           `json:"description"`
	Organizer        string           `json:"organizer,omitempty"`
	Sessions         []events.Session `json:"sessions,omitempty"`
	Sponsors         []events.Sponsor `json:"sponsors,omitempty"`
	RegistrationOpen bool             `json:"registrationOpen"`
	Registered       int              `json:"registered"`
	Waitlisted       int              `json:"waitlisted"`
}

func (t *EventTools) item(e *events.Event) eventItem {
	it := eventItem{
		ID:             e.ID,
		Title:          e.Title,
		Category:       string(e.Category),
		Status:         string(e.Status),
		Starts:         e.DateTime,
		Ends:           e.EndDateTime,
		Venue:          e.Location.Venue,
		City:           e.Location.City,
		Country:        e.Location.Country,
		IsVirtual:      e.IsVirtual,
		Price:          e.Price,
		Currency:       string(e.Currency),
		Capacity:       e.Capacity,
		AvailableSpots: e.AvailableSpots(),
		Tags:           e.Tags,
	}
	if t.baseURL != "" {
		it.URL = t.baseURL + "/api/events/" + e.ID
	}
	return it
}

func (t *EventTools) ListEventsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_events",
		Description: "List active events, soonest first, with optional filters for category, city, date range, price and virtual attendance.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "One of conference, workshop, networking, seminar, social, other",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "City, state or country to match",
				},
				"date_from": map[string]any{
					"type":        "string",
					"description": "Earliest start date (YYYY-MM-DD or a phrase like 'next monday')",
				},
				"date_to": map[string]any{
					"type":        "string",
					"description": "Latest start date",
				},
				"max_price": map[string]any{
					"type":        "number",
					"description": "Only events at or below this price",
				},
				"virtual": map[string]any{
					"type":        "boolean",
					"description": "true for online events only, false for in-person only",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of events (default 20, max 100)",
					"default":     defaultLimit,
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "Page number, starting at 1",
				},
			},
		},
	}
}

func (t *EventTools) ListEventsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Category string   `json:"category"`
		Location string   `json:"location"`
		DateFrom string   `json:"date_from"`
		DateTo   string   `json:"date_to"`
		MaxPrice *float64 `json:"max_price"`
		Virtual  *bool    `json:"virtual"`
		Limit    int      `json:"limit"`
		Page     int      `json:"page"`
	}{}
	if err := decodeArguments(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}

	values := url.Values{}
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			values.Set(key, v)
		}
	}
	set("category", args.Category)
	set("location", args.Location)
	set("dateFrom", args.DateFrom)
	set("dateTo", args.DateTo)
	if args.MaxPrice != nil {
		values.Set("priceMax", strconv.FormatFloat(*args.MaxPrice, 'f', -1, 64))
	}
	if args.Virtual != nil {
		values.Set("isVirtual", strconv.FormatBool(*args.Virtual))
	}
	filters, err := events.ParseFilters(values)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid filters", err), nil
	}

	limit, offset := page(args.Limit, args.Page)
	list, total, err := t.reader.List(ctx, filters, limit, offset)
	if err != nil {
		t.logger.Error().Err(err).Msg("mcp list_events failed")
		return mcp.NewToolResultError("failed to list events"), nil
	}
	return t.listResult(list, total, limit, offset)
}

func (t *EventTools) SearchEventsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_events",
		Description: "Full-text search over active events by title, description, tags, city or venue.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Words to search for",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of events (default 20, max 100)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *EventTools) SearchEventsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{}
	if err := decodeArguments(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit, offset := page(args.Limit, 1)
	list, total, err := t.reader.Search(ctx, args.Query, limit, offset)
	if err != nil {
		t.logger.Error().Err(err).Msg("mcp search_events failed")
		return mcp.NewToolResultError("failed to search events"), nil
	}
	return t.listResult(list, total, limit, offset)
}

func (t *EventTools) GetEventTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_event",
		Description: "Get one event with its description, agenda, sponsors and registration counts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "The event ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

func (t *EventTools) GetEventHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, result := t.loadEvent(ctx, request)
	if result != nil {
		return result, nil
	}
	detail := eventDetail{
		eventItem:        t.item(e),
		Description:      e.Description,
		Sessions:         e.Sessions,
		Sponsors:         e.Sponsors,
		RegistrationOpen: e.Settings.RegistrationOpen,
		Registered:       e.CountByStatus(events.AttendeeRegistered),
		Waitlisted:       e.CountByStatus(events.AttendeeWaitlisted),
	}
	if e.Organizer != nil {
		detail.Organizer = e.Organizer.Name
	}
	return toolResultJSON(detail)
}

func (t *EventTools) AvailabilityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "event_availability",
		Description: "Report whether an event still accepts registrations, how many spots are left and how long the waitlist is.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "The event ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

func (t *EventTools) AvailabilityHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, result := t.loadEvent(ctx, request)
	if result != nil {
		return result, nil
	}
	open, reason := true, ""
	switch {
	case e.Status == events.StatusCancelled || e.Status == events.StatusCompleted:
		open, reason = false, "event is "+string(e.Status)
	case !e.Settings.RegistrationOpen:
		open, reason = false, "registration is closed"
	case e.AvailableSpots() == 0 && !e.Settings.AllowWaitlist:
		open, reason = false, "event is full"
	}
	return toolResultJSON(map[string]any{
		"id":             e.ID,
		"title":          e.Title,
		"open":           open,
		"reason":         reason,
		"capacity":       e.Capacity,
		"availableSpots": e.AvailableSpots(),
		"waitlisted":     e.CountByStatus(events.AttendeeWaitlisted),
		"waitlistOpen":   e.Settings.AllowWaitlist,
	})
}

// UpcomingResource is a snapshot of the next active events.
func (t *EventTools) UpcomingResource() mcp.Resource {
	return mcp.NewResource(
		upcomingURI,
		"Upcoming events",
		mcp.WithResourceDescription("The next active events, soonest first"),
		mcp.WithMIMEType(upcomingMIMEType),
	)
}

func (t *EventTools) UpcomingReadHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	from := t.now()
	list, _, err := t.reader.List(ctx, events.Filters{Status: events.StatusActive, DateFrom: &from}, defaultLimit, 0)
	if err != nil {
		return nil, err
	}
	items := make([]eventItem, 0, len(list))
	for _, e := range list {
		items = append(items, t.item(e))
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	uri := upcomingURI
	if request.Params.URI != "" {
		uri = request.Params.URI
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: upcomingMIMEType, Text: string(data)},
	}, nil
}

func (t *EventTools) loadEvent(ctx context.Context, request mcp.CallToolRequest) (*events.Event, *mcp.CallToolResult) {
	args := struct {
		ID string `json:"id"`
	}{}
	if err := decodeArguments(request, &args); err != nil {
		return nil, mcp.NewToolResultErrorFromErr("invalid arguments", err)
	}
	id := strings.TrimSpace(args.ID)
	if err := ids.ValidateULID(id); err != nil {
		return nil, mcp.NewToolResultError("invalid event id")
	}
	e, err := t.reader.Get(ctx, id, "")
	if errors.Is(err, events.ErrEventNotFound) {
		return nil, mcp.NewToolResultError("event not found")
	}
	if err != nil {
		t.logger.Error().Err(err).Str("event_id", id).Msg("mcp get event failed")
		return nil, mcp.NewToolResultError("failed to load event")
	}
	if e.Status == events.StatusDraft {
		return nil, mcp.NewToolResultError("event not found")
	}
	return e, nil
}

func (t *EventTools) listResult(list []*events.Event, total, limit, offset int) (*mcp.CallToolResult, error) {
	items := make([]eventItem, 0, len(list))
	for _, e := range list {
		items = append(items, t.item(e))
	}
	return toolResultJSON(map[string]any{
		"items":    items,
		"total":    total,
		"has_more": offset+len(items) < total,
		"page":     offset/limit + 1,
	})
}

func page(limit, pageNum int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	pageNum = min(max(pageNum, 1), math.MaxInt32/maxLimit)
	return limit, (pageNum - 1) * limit
}

func decodeArguments(request mcp.CallToolRequest, v any) error {
	if request.Params.Arguments == nil {
		return nil
	}
	data, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func toolResultJSON(payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to build response", err), nil
	}
	return result, nil
}
