package strategy

import (
	"context"

	"github.com/eshop-platform/inventory-service/internal/repo"
	"gorm.io/gorm"
)

// Pessimistic takes an exclusive row lock on the stock row for the whole
// transaction, serializing all reservations per SKU. No oversell is
// possible; a concurrent reserve on the same SKU blocks until the lock
// holder finishes. Suited to high-contention, zero-oversell SKUs.
type Pessimistic struct {
	core
}

func NewPessimistic(r *repo.Repository) *Pessimistic {
	return &Pessimistic{core{repo: r}}
}

func (s *Pessimistic) Name() string { return NamePessimistic }

func (s *Pessimistic) Reserve(ctx context.Context, req ReserveRequest, emit EmitFunc) (*ReserveResult, error) {
	var result *ReserveResult
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.Ledger.Get(ctx, tx, req.SKUID, true)
		if err != nil {
			return err
		}
		if item.Available() < req.Quantity {
			return &repo.InsufficientStockError{
				SKUID: req.SKUID, Requested: req.Quantity, Available: item.Available(),
			}
		}
		r := newReservation(req, s.Name())
		if err := s.repo.Reservations.Create(ctx, tx, r); err != nil {
			return err
		}
		if err := s.repo.Ledger.Reserve(ctx, tx, req.SKUID, req.Quantity, item.Version); err != nil {
			return err
		}
		item.Reserved += req.Quantity
		item.Version++
		if emit != nil {
			if err := emit(tx, r, item); err != nil {
				return err
			}
		}
		result = &ReserveResult{ReservationID: r.ID, AvailableStock: item.Available()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
