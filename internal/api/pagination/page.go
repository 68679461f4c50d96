// Package pagination reads 1-indexed page/limit query parameters.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside a Postgres integer OFFSET.
	MaxPage = math.MaxInt32 / MaxLimit
)

type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit. Missing or malformed values fall back to the
// defaults; limit is capped at MaxLimit and page at MaxPage.
func Parse(values url.Values) Params {
	p := Params{Page: 1, Limit: DefaultLimit}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && v > 0 {
		p.Page = min(v, MaxPage)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("limit"))); err == nil && v > 0 {
		p.Limit = min(v, MaxLimit)
	}
	return p
}

func (p Params) Offset() int {
	page := min(max(p.Page, 1), MaxPage)
	limit := min(max(p.Limit, 0), MaxLimit)
	return (page - 1) * limit
}

// Meta describes the page within total results.
func (p Params) Meta(total int) response.Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return response.Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
