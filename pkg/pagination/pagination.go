package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Size  int
	Index int
}

// FromContext extracts pagination parameters from the echo context.
// page_size wins over limit; missing or invalid values fall back to the
// defaults and the index is clamped later by Paginate.
func FromContext(c echo.Context) Params {
	return FromContextWithDefault(c, DefaultPageSize)
}

// FromContextWithDefault is FromContext with a configurable default size.
func FromContextWithDefault(c echo.Context, def int) Params {
	if def <= 0 {
		def = DefaultPageSize
	}
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	if size <= 0 {
		size, _ = strconv.Atoi(c.QueryParam("limit"))
	}
	if size <= 0 {
		size = def
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	index, _ := strconv.Atoi(c.QueryParam("page"))
	if index <= 0 {
		index = 1
	}

	return Params{Size: size, Index: index}
}

// Page is one slice of a result set plus the metadata needed to render a
// pager.
type Page[T any] struct {
	Items       []T
	Index       int
	Size        int
	TotalPages  int
	Total       int
	HasNext     bool
	HasPrevious bool
}

// Paginate slices items for the requested page. A non-positive size falls
// back to DefaultPageSize. TotalPages is never below 1, and the index is
// clamped into [1, TotalPages] so out-of-range requests return the nearest
// page instead of failing.
func Paginate[T any](items []T, size, index int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if index < 1 {
		index = 1
	}
	if index > pages {
		index = pages
	}

	start := (index - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page[T]{
		Items:       items[start:end:end],
		Index:       index,
		Size:        size,
		TotalPages:  pages,
		Total:       total,
		HasNext:     index < pages,
		HasPrevious: index > 1,
	}
}

// Apply paginates items with the request parameters.
func Apply[T any](items []T, p Params) Page[T] {
	return Paginate(items, p.Size, p.Index)
}

// Offset returns the index of the first item of the page.
func (p Page[T]) Offset() int {
	return (p.Index - 1) * p.Size
}

// Response wraps a paginated API response.
type Response struct {
	Data        interface{}            `json:"data"`
	Total       int                    `json:"total"`
	Page        int                    `json:"page"`
	PageSize    int                    `json:"page_size"`
	TotalPages  int                    `json:"total_pages"`
	Offset      int                    `json:"offset"`
	HasMore     bool                   `json:"has_more"`
	HasPrevious bool                   `json:"has_previous"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// NewResponse builds the response envelope for a page. meta carries
// view-specific extras such as totals or selector options and may be nil.
func NewResponse[T any](page Page[T], meta map[string]interface{}) *Response {
	data := page.Items
	if data == nil {
		data = []T{}
	}
	return &Response{
		Data:        data,
		Total:       page.Total,
		Page:        page.Index,
		PageSize:    page.Size,
		TotalPages:  page.TotalPages,
		Offset:      page.Offset(),
		HasMore:     page.HasNext,
		HasPrevious: page.HasPrevious,
		Meta:        meta,
	}
}
