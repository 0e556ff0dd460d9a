package repo

import (
	"errors"
	"fmt"
)

// ErrSKUNotFound is returned when no stock row exists for a SKU.
var ErrSKUNotFound = errors.New("sku not found")

// ErrReservationNotFound is returned when a reservation id is unknown.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrVersionConflict means a concurrent writer won the race on a stock row.
var ErrVersionConflict = errors.New("stock version conflict")

// InsufficientStockError is a rejected operation, not a fault: it carries
// the available quantity observed at the moment of rejection so callers can
// make retry/backoff decisions.
type InsufficientStockError struct {
	SKUID     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.SKUID, e.Requested, e.Available)
}
