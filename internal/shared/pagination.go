package shared

import (
	"math"
	"net/url"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PageRequest holds the requested window before the total is known.
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset returns the row offset for the requested page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePageRequest reads page/per_page query parameters, clamping
// per_page to [1, 100] and defaulting to the first page of 20.
func ParsePageRequest(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	return Pagination{Page: req.Page, PerPage: req.PerPage, Total: total, TotalPages: totalPages}
}
