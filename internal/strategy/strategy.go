package strategy

import (
	"context"
	"time"

	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NameOptimistic  = "optimistic"
	NamePessimistic = "pessimistic"
)

type ReserveRequest struct {
	SKUID      string
	Quantity   int64
	ReservedBy string
	TTL        time.Duration
}

type ReserveResult struct {
	ReservationID  string
	AvailableStock int64
}

// EmitFunc is supplied by the caller so the outbox append lands in the same
// transaction as the mutation. It receives the reservation and the stock
// row as they stand after the mutation. Returning an error aborts the whole
// transaction.
type EmitFunc func(tx *gorm.DB, r *model.Reservation, s *model.StockItem) error

// ReservationStrategy turns a reservation request into a committed stock
// mutation. The two variants differ only in how Reserve reads the stock
// row; Commit and Release share one guarded implementation.
type ReservationStrategy interface {
	Name() string
	Reserve(ctx context.Context, req ReserveRequest, emit EmitFunc) (*ReserveResult, error)
	// Commit moves RESERVED -> CONSUMED. False means the reservation is
	// absent or not in RESERVED; nothing is mutated in that case.
	Commit(ctx context.Context, reservationID, orderID string, emit EmitFunc) (bool, error)
	// Release moves RESERVED -> RELEASED and restores the stock. Same false
	// semantics as Commit, so a double release can never double-credit.
	Release(ctx context.Context, reservationID, reason string, emit EmitFunc) (bool, error)
}

func newReservation(req ReserveRequest, strategyName string) *model.Reservation {
	return &model.Reservation{
		ID:         uuid.NewString(),
		SKUID:      req.SKUID,
		Quantity:   req.Quantity,
		ReservedBy: req.ReservedBy,
		Status:     model.ReservationStatusReserved,
		Strategy:   strategyName,
		ExpiresAt:  time.Now().Add(req.TTL),
	}
}
