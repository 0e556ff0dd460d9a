package strategy

import (
	"context"
	"errors"

	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/eshop-platform/inventory-service/internal/repo"
	"gorm.io/gorm"
)

// core carries the commit/release halves of the contract, identical for
// both variants: by the time a reservation exists the contention is on the
// reservation row, and the conditional status transition settles it.
type core struct {
	repo *repo.Repository
}

func (c core) Commit(ctx context.Context, reservationID, orderID string, emit EmitFunc) (bool, error) {
	ok := false
	err := c.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := c.repo.Reservations.Get(ctx, tx, reservationID, true)
		if errors.Is(err, repo.ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		extra := map[string]interface{}{}
		if orderID != "" {
			extra["order_id"] = orderID
		}
		moved, err := c.repo.Reservations.Transition(ctx, tx, reservationID,
			model.ReservationStatusReserved, model.ReservationStatusConsumed, extra)
		if err != nil || !moved {
			return err
		}
		s, err := c.repo.Ledger.Get(ctx, tx, r.SKUID, true)
		if err != nil {
			return err
		}
		if err := c.repo.Ledger.Consume(ctx, tx, r.SKUID, r.Quantity, s.Version); err != nil {
			return err
		}
		s.Quantity -= r.Quantity
		s.Reserved -= r.Quantity
		s.Version++
		r.Status = model.ReservationStatusConsumed
		if orderID != "" {
			r.OrderID = &orderID
		}
		if emit != nil {
			if err := emit(tx, r, s); err != nil {
				return err
			}
		}
		ok = true
		return nil
	})
	return ok, err
}

func (c core) Release(ctx context.Context, reservationID, reason string, emit EmitFunc) (bool, error) {
	ok := false
	err := c.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := c.repo.Reservations.Get(ctx, tx, reservationID, true)
		if errors.Is(err, repo.ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		extra := map[string]interface{}{}
		if reason != "" {
			extra["release_reason"] = reason
		}
		moved, err := c.repo.Reservations.Transition(ctx, tx, reservationID,
			model.ReservationStatusReserved, model.ReservationStatusReleased, extra)
		if err != nil || !moved {
			return err
		}
		s, err := c.repo.Ledger.Get(ctx, tx, r.SKUID, true)
		if err != nil {
			return err
		}
		if err := c.repo.Ledger.Release(ctx, tx, r.SKUID, r.Quantity, s.Version); err != nil {
			return err
		}
		s.Reserved -= r.Quantity
		s.Version++
		r.Status = model.ReservationStatusReleased
		if reason != "" {
			r.ReleaseReason = &reason
		}
		if emit != nil {
			if err := emit(tx, r, s); err != nil {
				return err
			}
		}
		ok = true
		return nil
	})
	return ok, err
}
