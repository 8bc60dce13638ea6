package admin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pharmacore/pkg/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listParams carries the parsed filter and pagination query parameters. Empty
// strings mean the filter is absent.
type listParams struct {
	Search       string
	Category     string
	Status       string
	StockStatus  string
	City         string
	ProductID    string
	CustomerID   string
	MovementType string
	Blocked      *bool
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// listMeta is the pagination envelope returned beside every list payload.
type listMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func parseListParams(q url.Values) (listParams, error) {
	p := listParams{
		Search:       strings.TrimSpace(q.Get("search")),
		Category:     strings.TrimSpace(q.Get("category")),
		Status:       strings.TrimSpace(q.Get("status")),
		StockStatus:  strings.TrimSpace(q.Get("stock_status")),
		City:         strings.TrimSpace(q.Get("city")),
		ProductID:    strings.TrimSpace(q.Get("product_id")),
		CustomerID:   strings.TrimSpace(q.Get("customer_id")),
		MovementType: strings.TrimSpace(q.Get("type")),
		Page:         1,
		PageSize:     defaultPageSize,
	}
	if raw := q.Get("blocked"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("invalid blocked filter %q", raw)
		}
		p.Blocked = &b
	}
	var err error
	if p.From, err = parseTimeParam(q.Get("from")); err != nil {
		return p, err
	}
	if p.To, err = parseTimeParam(q.Get("to")); err != nil {
		return p, err
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid page %q", raw)
		}
		p.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, fmt.Errorf("invalid page_size %q", raw)
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		p.PageSize = n
	}
	return p, nil
}

// parseTimeParam accepts RFC3339, millisecond local timestamps, and bare
// dates. Bare dates resolve to the start of the day.
func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", raw)
}

func (p listParams) inRange(t time.Time) bool {
	if p.From != nil && t.Before(*p.From) {
		return false
	}
	if p.To != nil && t.After(*p.To) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func filterProducts(items []domain.Product, p listParams) []domain.Product {
	out := items[:0:0]
	for _, item := range items {
		if p.Search != "" && !containsFold(item.Name, p.Search) && !containsFold(item.SKU, p.Search) {
			continue
		}
		if p.Category != "" && !strings.EqualFold(item.Category, p.Category) {
			continue
		}
		if p.StockStatus != "" && !strings.EqualFold(string(item.StockStatus), p.StockStatus) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func filterOrders(items []domain.Order, p listParams) ([]domain.Order, error) {
	var status domain.OrderStatus
	if p.Status != "" {
		parsed, err := domain.ParseOrderStatus(p.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	out := items[:0:0]
	for _, item := range items {
		if p.Search != "" && !containsFold(item.Number, p.Search) {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		if p.CustomerID != "" && item.CustomerID != p.CustomerID {
			continue
		}
		if !p.inRange(item.PlacedAt) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func filterCustomers(items []domain.Customer, p listParams) []domain.Customer {
	out := items[:0:0]
	for _, item := range items {
		if p.Search != "" && !containsFold(item.Name, p.Search) && !containsFold(item.Email, p.Search) {
			continue
		}
		if p.City != "" && (item.City == nil || !strings.EqualFold(*item.City, p.City)) {
			continue
		}
		if p.Blocked != nil && item.Blocked != *p.Blocked {
			continue
		}
		out = append(out, item)
	}
	return out
}

func filterPrescriptions(items []domain.Prescription, p listParams) ([]domain.Prescription, error) {
	var status domain.PrescriptionStatus
	if p.Status != "" {
		parsed, err := domain.ParsePrescriptionStatus(p.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	out := items[:0:0]
	for _, item := range items {
		if status != "" && item.Status != status {
			continue
		}
		if p.CustomerID != "" && item.CustomerID != p.CustomerID {
			continue
		}
		if !p.inRange(item.CreatedAt) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func filterMovements(items []domain.StockMovement, p listParams) ([]domain.StockMovement, error) {
	var movement domain.MovementType
	if p.MovementType != "" {
		parsed, err := domain.ParseMovementType(p.MovementType)
		if err != nil {
			return nil, err
		}
		movement = parsed
	}
	out := items[:0:0]
	for _, item := range items {
		if p.ProductID != "" && item.ProductID != p.ProductID {
			continue
		}
		if movement != "" && item.Type != movement {
			continue
		}
		if !p.inRange(item.CreatedAt) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// paginate slices one page out of the filtered result set. Pages past the end
// yield an empty data slice with the real total.
func paginate[T any](items []T, p listParams) ([]T, listMeta) {
	meta := listMeta{Total: len(items), Page: p.Page, PageSize: p.PageSize}
	start := (p.Page - 1) * p.PageSize
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}
