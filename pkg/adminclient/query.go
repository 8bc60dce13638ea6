// Package adminclient implements the data-synchronization primitives used by
// pharmacy admin frontends: a canonical list query, a stale-while-revalidate
// list cache, an optimistic mutation executor, and pure status-transition
// gates over the shared domain tables.
package adminclient

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultPageSize matches the server's default page size.
	DefaultPageSize = 20
	// MaxPageSize matches the server's clamp.
	MaxPageSize = 100
)

// ListQuery identifies one cached page of a filtered collection. Two queries
// address the same page iff their Key() values are equal.
type ListQuery struct {
	Resource string
	Filters  map[string]string
	Page     int
	PageSize int
}

// dateOnly is the layout of filter values that need day-boundary expansion.
const dateOnly = "2006-01-02"

// boundary layouts carry millisecond precision without a zone, matching the
// local-time semantics of inclusive date-range filtering.
const boundaryLayout = "2006-01-02T15:04:05.000"

// BuildQuery canonicalizes raw filter state: string values are trimmed and
// empty ones omitted, date-only from/to values expand to local day boundaries
// (from at 00:00:00.000, to at 23:59:59.999), and page/pageSize are clamped
// to sane server-accepted values.
func BuildQuery(resource string, rawFilters map[string]string, page, pageSize int) ListQuery {
	filters := make(map[string]string, len(rawFilters))
	for key, value := range rawFilters {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "from":
			if t, err := time.ParseInLocation(dateOnly, value, time.Local); err == nil {
				value = t.Format(boundaryLayout)
			}
		case "to":
			if t, err := time.ParseInLocation(dateOnly, value, time.Local); err == nil {
				value = endOfDay(t).Format(boundaryLayout)
			}
		}
		filters[key] = value
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return ListQuery{Resource: resource, Filters: filters, Page: page, PageSize: pageSize}
}

// endOfDay pins the inclusive upper boundary to 23:59:59.999 of t's calendar
// day. Built from calendar components rather than wall-clock addition, so DST
// transition days (23 or 25 hours long) still resolve to the same day.
func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Key returns the canonical cache key for the query. Filter keys are sorted
// so equal queries always produce equal keys.
func (q ListQuery) Key() string {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(q.Resource)
	b.WriteByte('?')
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Filters[k])
		b.WriteByte('&')
	}
	fmt.Fprintf(&b, "page=%d&page_size=%d", q.Page, q.PageSize)
	return b.String()
}

// Prefix is the invalidation prefix covering every page and filter
// combination of the query's resource.
func (q ListQuery) Prefix() string {
	return q.Resource + "?"
}

// Encode renders the query as URL parameters for the list endpoint.
func (q ListQuery) Encode() url.Values {
	values := url.Values{}
	for k, v := range q.Filters {
		values.Set(k, v)
	}
	values.Set("page", fmt.Sprintf("%d", q.Page))
	values.Set("page_size", fmt.Sprintf("%d", q.PageSize))
	return values
}

// PageRange holds display-ready pagination facts for "Showing X-Y of Z".
type PageRange struct {
	Start      int
	End        int
	TotalPages int
}

// ComputeRange derives the visible range for a page. The zero-results case
// yields {0, 0, 1} rather than negative values.
func ComputeRange(total, page, pageSize int) PageRange {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if total == 0 {
		return PageRange{Start: 0, End: 0, TotalPages: totalPages}
	}
	start := (page-1)*pageSize + 1
	end := page * pageSize
	if end > total {
		end = total
	}
	return PageRange{Start: start, End: end, TotalPages: totalPages}
}
