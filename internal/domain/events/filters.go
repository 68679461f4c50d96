package events

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

// Filters narrow event listings. Zero values mean "no constraint".
type Filters struct {
	Category    Category
	Status      Status
	Location    string
	Query       string
	OrganizerID string
	DateFrom    *time.Time
	DateTo      *time.Time
	PriceMin    *float64
	PriceMax    *float64
	IsVirtual   *bool
}

// ParseFilters reads the public listing filters. Status defaults to active.
// Dates accept ISO 8601 and, failing that, natural phrases such as
// "next friday" or "1 March 2026".
func ParseFilters(values url.Values) (Filters, error) {
	f := Filters{Status: StatusActive}

	if v := strings.TrimSpace(values.Get("status")); v != "" {
		f.Status = Status(v)
		if !f.Status.Valid() {
			return f, validation.New("status", "must be one of: draft, active, completed, cancelled")
		}
	}
	if v := strings.TrimSpace(values.Get("category")); v != "" {
		f.Category = Category(strings.ToLower(v))
		if !f.Category.Valid() {
			return f, validation.New("category", "must be one of: conference, workshop, networking, seminar, social, other")
		}
	}
	f.Location = strings.TrimSpace(values.Get("location"))
	f.Query = strings.TrimSpace(values.Get("q"))

	var err error
	if f.DateFrom, err = parseFilterDate("dateFrom", values.Get("dateFrom")); err != nil {
		return f, err
	}
	if f.DateTo, err = parseFilterDate("dateTo", values.Get("dateTo")); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, validation.New("dateTo", "must be on or after dateFrom")
	}

	if f.PriceMin, err = parseFloat("priceMin", values.Get("priceMin")); err != nil {
		return f, err
	}
	if f.PriceMax, err = parseFloat("priceMax", values.Get("priceMax")); err != nil {
		return f, err
	}

	if v := strings.TrimSpace(values.Get("isVirtual")); v != "" {
		b := v == "true"
		f.IsVirtual = &b
	}
	return f, nil
}

// ParseAdminFilters reads the admin listing filters, where status is optional.
func ParseAdminFilters(values url.Values) (Filters, error) {
	f, err := ParseFilters(values)
	if err != nil {
		return f, err
	}
	if strings.TrimSpace(values.Get("status")) == "" {
		f.Status = ""
	}
	return f, nil
}

func parseFilterDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	parsed, err := dps.Parse(nil, value)
	if err != nil || parsed.Time.IsZero() {
		return nil, validation.New(field, "must be a date")
	}
	t := parsed.Time.UTC()
	return &t, nil
}

func parseFloat(field, value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return nil, validation.New(field, "must be a non-negative number")
	}
	return &f, nil
}
