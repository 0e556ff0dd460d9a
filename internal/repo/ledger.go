package repo

import (
	"context"
	"errors"
	"time"

	"github.com/eshop-platform/inventory-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLedger owns the per-SKU counters. Every mutation is a conditional
// UPDATE executed inside the caller's transaction; a RowsAffected of zero
// means the guard failed and nothing was written.
type StockLedger struct{}

// forUpdate adds a row-level lock to the query. SQLite (used in tests) has
// no FOR UPDATE syntax; its single-writer lock serializes transactions
// anyway, so the clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Get reads the stock row for a SKU. With lock=true the read takes an
// exclusive row lock held until the transaction ends.
func (StockLedger) Get(ctx context.Context, tx *gorm.DB, skuID string, lock bool) (*model.StockItem, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = forUpdate(q)
	}
	var s model.StockItem
	if err := q.Where("sku_id = ?", skuID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSKUNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Reserve moves qty from available into reserved. The WHERE clause
// re-checks both the version and the available quantity at write time, so
// the subtraction never acts on a stale read.
func (l StockLedger) Reserve(ctx context.Context, tx *gorm.DB, skuID string, qty int64, oldVersion uint64) error {
	res := tx.WithContext(ctx).Model(&model.StockItem{}).
		Where("sku_id = ? AND version = ? AND quantity - reserved >= ?", skuID, oldVersion, qty).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved + ?", qty),
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return l.classifyGuardFailure(ctx, tx, skuID, qty, oldVersion)
	}
	return nil
}

// Release returns qty from reserved to available.
func (l StockLedger) Release(ctx context.Context, tx *gorm.DB, skuID string, qty int64, oldVersion uint64) error {
	res := tx.WithContext(ctx).Model(&model.StockItem{}).
		Where("sku_id = ? AND version = ? AND reserved >= ?", skuID, oldVersion, qty).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved - ?", qty),
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Consume finalizes a committed reservation: the units leave both the
// reserved pool and the total on hand.
func (l StockLedger) Consume(ctx context.Context, tx *gorm.DB, skuID string, qty int64, oldVersion uint64) error {
	res := tx.WithContext(ctx).Model(&model.StockItem{}).
		Where("sku_id = ? AND version = ? AND reserved >= ? AND quantity >= ?", skuID, oldVersion, qty, qty).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"reserved":   gorm.Expr("reserved - ?", qty),
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Restock adds qty to the total on hand, creating the row on first sight of
// a SKU. The read takes a row lock so two restocks cannot lose an update.
func (l StockLedger) Restock(ctx context.Context, tx *gorm.DB, skuID string, qty int64) (*model.StockItem, error) {
	s, err := l.Get(ctx, tx, skuID, true)
	if errors.Is(err, ErrSKUNotFound) {
		s = &model.StockItem{SKUID: skuID, Quantity: qty}
		if err := tx.WithContext(ctx).Create(s).Error; err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	res := tx.WithContext(ctx).Model(&model.StockItem{}).
		Where("sku_id = ? AND version = ?", skuID, s.Version).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"version":    s.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrVersionConflict
	}
	s.Quantity += qty
	s.Version++
	return s, nil
}

// classifyGuardFailure re-reads the row to tell a lost version race apart
// from a genuine shortage.
func (l StockLedger) classifyGuardFailure(ctx context.Context, tx *gorm.DB, skuID string, qty int64, oldVersion uint64) error {
	cur, err := l.Get(ctx, tx, skuID, false)
	if err != nil {
		return err
	}
	if cur.Version != oldVersion {
		return ErrVersionConflict
	}
	return &InsufficientStockError{SKUID: skuID, Requested: qty, Available: cur.Available()}
}
