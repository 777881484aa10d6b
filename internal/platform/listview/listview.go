// Package listview wires the filter and pagination engines to list
// requests. It owns the page reset contract: a page index only survives
// while the filter that produced it is unchanged.
package listview

import (
	"github.com/labstack/echo/v4"

	"github.com/DBEST-EZRA/HMIS/internal/platform/filter"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
	"github.com/DBEST-EZRA/HMIS/pkg/pagination"
)

// Query is a parsed list request.
type Query struct {
	Filter filter.Spec
	Page   pagination.Params
	// FilterKey is the key of the filter the client's page index was
	// computed under, echoed back from the previous response.
	FilterKey string
}

// FromContext parses search, date, month, year, page, page_size and
// filter_key. defaultSize <= 0 selects pagination.DefaultPageSize.
func FromContext(c echo.Context, defaultSize int) (Query, error) {
	q := Query{
		Filter: filter.Spec{
			Search: c.QueryParam("search"),
			Date:   c.QueryParam("date"),
			Month:  c.QueryParam("month"),
			Year:   c.QueryParam("year"),
		},
		Page:      pagination.FromContextWithDefault(c, defaultSize),
		FilterKey: c.QueryParam("filter_key"),
	}
	if err := q.Filter.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// WithDefaultDate applies date to the filter when the request did not
// choose one. Dashboards that show "today" by default use it.
func (q Query) WithDefaultDate(date string) Query {
	if q.Filter.Date == "" {
		q.Filter.Date = date
	}
	return q
}

// Result is a filtered, paginated view.
type Result struct {
	Page      pagination.Page[store.Record]
	Matched   []store.Record
	FilterKey string
	Years     []string
	// Reset is true when the requested page index was discarded because the
	// filter changed.
	Reset bool
}

// Run filters records and slices the requested page. When the request
// carries a filter key from a different filter, the page index resets to 1.
func (q Query) Run(records []store.Record) Result {
	key := q.Filter.Key()
	index := q.Page.Index
	reset := false
	if q.FilterKey != "" && q.FilterKey != key && index != 1 {
		index = 1
		reset = true
	}
	matched := filter.Apply(records, q.Filter)
	return Result{
		Page:      pagination.Paginate(matched, q.Page.Size, index),
		Matched:   matched,
		FilterKey: key,
		Years:     filter.Years(records),
		Reset:     reset,
	}
}

// Response renders the result in the paginated envelope. extra entries are
// merged into the meta object.
func (r Result) Response(extra map[string]interface{}) *pagination.Response {
	meta := map[string]interface{}{
		"filter_key": r.FilterKey,
		"years":      r.Years,
	}
	if r.Reset {
		meta["page_reset"] = true
	}
	for k, v := range extra {
		meta[k] = v
	}
	return pagination.NewResponse(r.Page, meta)
}
