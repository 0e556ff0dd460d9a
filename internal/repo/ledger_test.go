package repo

import (
	"context"
	"testing"

	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StockItem{}, &model.Reservation{}, &model.OutboxEvent{}))
	return db
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	db := newTestDB(t, "ledger_reserve")
	ctx := context.Background()
	var ledger StockLedger

	require.NoError(t, db.Create(&model.StockItem{SKUID: "SKU1", Quantity: 5}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		item, err := ledger.Get(ctx, tx, "SKU1", false)
		require.NoError(t, err)
		return ledger.Reserve(ctx, tx, "SKU1", 3, item.Version)
	})
	assert.NoError(t, err)

	item, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, item.Quantity)
	assert.EqualValues(t, 3, item.Reserved)
	assert.EqualValues(t, 2, item.Available())

	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, "SKU1", 3, item.Version)
	})
	assert.NoError(t, err)

	item, err = ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, item.Reserved)
	assert.EqualValues(t, 5, item.Available())
}

func TestLedger_InsufficientStockCarriesAvailable(t *testing.T) {
	db := newTestDB(t, "ledger_insufficient")
	ctx := context.Background()
	var ledger StockLedger

	require.NoError(t, db.Create(&model.StockItem{SKUID: "SKU1", Quantity: 5, Reserved: 3}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		item, err := ledger.Get(ctx, tx, "SKU1", false)
		require.NoError(t, err)
		return ledger.Reserve(ctx, tx, "SKU1", 3, item.Version)
	})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.EqualValues(t, 2, insufficient.Available)
	assert.EqualValues(t, 3, insufficient.Requested)
	assert.Equal(t, "SKU1", insufficient.SKUID)

	// nothing was written
	item, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, item.Reserved)
}

func TestLedger_StaleVersionIsConflict(t *testing.T) {
	db := newTestDB(t, "ledger_conflict")
	ctx := context.Background()
	var ledger StockLedger

	require.NoError(t, db.Create(&model.StockItem{SKUID: "SKU1", Quantity: 10}).Error)

	item, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)

	// first writer wins
	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, "SKU1", 2, item.Version)
	})
	require.NoError(t, err)

	// second writer carries the stale version and loses
	err = db.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, "SKU1", 2, item.Version)
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	final, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, final.Reserved, "the losing writer must not decrement")
}

func TestLedger_ConsumeFinalizes(t *testing.T) {
	db := newTestDB(t, "ledger_consume")
	ctx := context.Background()
	var ledger StockLedger

	require.NoError(t, db.Create(&model.StockItem{SKUID: "SKU1", Quantity: 5, Reserved: 3, Version: 1}).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Consume(ctx, tx, "SKU1", 3, 1)
	})
	assert.NoError(t, err)

	item, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, item.Quantity)
	assert.EqualValues(t, 0, item.Reserved)
	assert.EqualValues(t, 2, item.Available())
}

func TestLedger_ReleaseGuardsReservedFloor(t *testing.T) {
	db := newTestDB(t, "ledger_floor")
	ctx := context.Background()
	var ledger StockLedger

	require.NoError(t, db.Create(&model.StockItem{SKUID: "SKU1", Quantity: 5, Reserved: 1}).Error)

	// releasing more than is reserved must fail, keeping reserved >= 0
	err := db.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, "SKU1", 2, 0)
	})
	assert.Error(t, err)

	item, err := ledger.Get(ctx, db, "SKU1", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, item.Reserved)
}

func TestLedger_RestockCreatesAndAccumulates(t *testing.T) {
	db := newTestDB(t, "ledger_restock")
	ctx := context.Background()
	var ledger StockLedger

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Restock(ctx, tx, "SKU9", 4)
		return err
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		item, err := ledger.Restock(ctx, tx, "SKU9", 6)
		if err == nil {
			assert.EqualValues(t, 10, item.Quantity)
		}
		return err
	})
	require.NoError(t, err)

	item, err := ledger.Get(ctx, db, "SKU9", false)
	require.NoError(t, err)
	assert.EqualValues(t, 10, item.Quantity)

	_, err = ledger.Get(ctx, db, "missing", false)
	assert.ErrorIs(t, err, ErrSKUNotFound)
}
