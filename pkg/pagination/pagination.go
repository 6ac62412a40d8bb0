package pagination

import (
	"net/http"
	"strconv"
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// Policy bounds the page size a caller may ask for.
type Policy struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPolicy is used for storefront listings: 10 items per page, at most 50.
var DefaultPolicy = Policy{DefaultLimit: 10, MaxLimit: 50}

// DefaultParams returns sensible pagination defaults.
func DefaultParams() Params {
	return DefaultPolicy.Params(1, DefaultPolicy.DefaultLimit)
}

// Params normalizes a page/limit pair. A page below 1 becomes 1, a
// non-positive limit becomes the default and a limit above the maximum is
// clamped to the maximum.
func (p Policy) Params(page, limit int) Params {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = p.DefaultLimit
	case limit > p.MaxLimit:
		limit = p.MaxLimit
	}
	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// FromRequest extracts pagination parameters from the `page` and `limit`
// query parameters using DefaultPolicy.
func FromRequest(r *http.Request) Params {
	return DefaultPolicy.FromRequest(r)
}

// FromRequest extracts pagination parameters from an HTTP request.
// Unparseable values fall back to the defaults.
func (p Policy) FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return p.Params(page, limit)
}

// Result wraps a paginated response.
type Result[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewResult creates a paginated result. Data is never nil so it always
// serializes as a JSON array.
func NewResult[T any](data []T, total int, params Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:  data,
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
		Pages: TotalPages(total, params.Limit),
	}
}

// TotalPages returns ceil(total/limit), or 0 when limit is not positive.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := total / limit
	if total%limit > 0 {
		pages++
	}
	return pages
}
