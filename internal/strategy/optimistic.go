package strategy

import (
	"context"

	"github.com/eshop-platform/inventory-service/internal/repo"
	"gorm.io/gorm"
)

// Optimistic reads stock without any lock and relies on the version-guarded
// ledger update to settle races. A lost race surfaces as
// repo.ErrVersionConflict rather than an oversell. Suited to low and medium
// contention SKUs: no reservation ever waits on another.
type Optimistic struct {
	core
}

func NewOptimistic(r *repo.Repository) *Optimistic {
	return &Optimistic{core{repo: r}}
}

func (s *Optimistic) Name() string { return NameOptimistic }

func (s *Optimistic) Reserve(ctx context.Context, req ReserveRequest, emit EmitFunc) (*ReserveResult, error) {
	// unlocked pre-check; a plainly short request never opens the unit of work
	cur, err := s.repo.Ledger.Get(ctx, s.repo.DB(ctx), req.SKUID, false)
	if err != nil {
		return nil, err
	}
	if cur.Available() < req.Quantity {
		return nil, &repo.InsufficientStockError{
			SKUID: req.SKUID, Requested: req.Quantity, Available: cur.Available(),
		}
	}

	var result *ReserveResult
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.Ledger.Get(ctx, tx, req.SKUID, false)
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
