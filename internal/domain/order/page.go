package order

import "github.com/xenking/bookclub-orders/internal/apperr"

// Page size bounds.
const (
	MinLimit = 1
	MaxLimit = 100
)

// MsgNoOrdersLeft is returned when a page request yields no rows.
const MsgNoOrdersLeft = "No orders left to return"

// PageRequest is an offset-based page request. Offset is the number of items
// the caller already received, not a page number.
type PageRequest struct {
	Offset int
	Limit  int
}

// Validate checks the offset and limit bounds.
func (p PageRequest) Validate() error {
	if p.Offset < 0 {
		return apperr.Validationf("Invalid pagination parameters", "offset %d is negative", p.Offset)
	}
	if p.Limit < MinLimit || p.Limit > MaxLimit {
		return apperr.Validationf("Invalid pagination parameters", "limit %d outside [%d, %d]", p.Limit, MinLimit, MaxLimit)
	}
	return nil
}

// Page is one page of results. NextOffset is the offset to request the
// following page with.
type Page[T any] struct {
	Items      []T
	Total      int
	Offset     int
	NextOffset int
	HasMore    bool
}

// NewPage builds a page from the rows of req and the total row count. An
// empty page is reported as apperr.KindNotFound.
func NewPage[T any](items []T, total int, req PageRequest) (Page[T], error) {
	if len(items) == 0 {
		return Page[T]{}, apperr.NotFound(MsgNoOrdersLeft)
	}
	next := req.Offset + len(items)
	return Page[T]{
		Items:      items,
		Total:      total,
		Offset:     req.Offset,
		NextOffset: next,
		HasMore:    next < total,
	}, nil
}
