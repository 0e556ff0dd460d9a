package repo

import (
	"context"
	"errors"
	"time"

	"github.com/eshop-platform/inventory-service/internal/model"
	"gorm.io/gorm"
)

// ReservationStore persists reservations and guards their status
// transitions.
type ReservationStore struct{}

func (ReservationStore) Create(ctx context.Context, tx *gorm.DB, r *model.Reservation) error {
	return tx.WithContext(ctx).Create(r).Error
}

func (ReservationStore) Get(ctx context.Context, tx *gorm.DB, id string, lock bool) (*model.Reservation, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = forUpdate(q)
	}
	var r model.Reservation
	if err := q.Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Transition moves a reservation from one status to another with a
// conditional UPDATE. Returns false when the row is not currently in the
// expected status, without touching anything.
func (ReservationStore) Transition(ctx context.Context, tx *gorm.DB, id string, from, to model.ReservationStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindExpired lists RESERVED rows whose TTL has passed, oldest first.
func (ReservationStore) FindExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]model.Reservation, error) {
	var rows []model.Reservation
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.ReservationStatusReserved, now).
		Order("expires_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
