package common

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	Count   int  `json:"count"`
	HasMore bool `json:"hasMore"`
}

// PageRequest is a validated page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.Limit }

// ParsePage reads ?page and ?limit. Missing values take defaults, a limit above
// maxLimit is capped, and malformed or non-positive values are rejected.
func ParsePage(q url.Values, defaultLimit, maxLimit int) (PageRequest, error) {
	p := PageRequest{Page: 1, Limit: defaultLimit}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, NewAppError("BAD_REQUEST", "page must be a positive integer", http.StatusBadRequest, err)
		}
		p.Page = n
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, NewAppError("BAD_REQUEST", "limit must be a positive integer", http.StatusBadRequest, err)
		}
		p.Limit = n
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// Paginate trims a result fetched with Limit+1 rows and reports whether more
// rows exist.
func Paginate[T any](items []T, p PageRequest) ([]T, Pagination) {
	meta := Pagination{Page: p.Page, PerPage: p.Limit}
	if len(items) > p.Limit {
		items = items[:p.Limit]
		meta.HasMore = true
	}
	meta.Count = len(items)
	return items, meta
}
