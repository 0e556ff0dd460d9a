package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/eshop-platform/inventory-service/internal/event"
	"github.com/eshop-platform/inventory-service/internal/experiment"
	"github.com/eshop-platform/inventory-service/internal/logger"
	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/eshop-platform/inventory-service/internal/repo"
	"github.com/eshop-platform/inventory-service/internal/strategy"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testTopics = event.TopicMap{
	Reserved:  "inventory.reserved",
	Committed: "inventory.committed",
	Released:  "inventory.released",
}

func newTestService(t *testing.T, name string, rdb *redis.Client, assigner experiment.Assigner) (*ReservationService, *repo.Repository) {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StockItem{}, &model.Reservation{}, &model.OutboxEvent{}))

	log := logger.NewNop()
	repository := repo.NewRepository(db, rdb, nil, log)
	if assigner == nil {
		assigner = experiment.Static{Strategy: strategy.NameOptimistic}
	}
	svc := NewReservationService(repository,
		strategy.NewOptimistic(repository), strategy.NewPessimistic(repository),
		assigner, testTopics, "inventory-service-test", 15*time.Minute, log)
	return svc, repository
}

func outboxRows(t *testing.T, r *repo.Repository) []model.OutboxEvent {
	var rows []model.OutboxEvent
	require.NoError(t, r.DB(context.Background()).Order("id").Find(&rows).Error)
	return rows
}

func decodeEnvelope(t *testing.T, row model.OutboxEvent) event.Envelope {
	var env event.Envelope
	require.NoError(t, json.Unmarshal([]byte(row.Payload), &env))
	return env
}

func TestReservationService_FullFlow(t *testing.T) {
	svc, r := newTestService(t, "svc_fullflow", nil, nil)
	ctx := context.Background()

	_, err := svc.Restock(ctx, "X", 5)
	require.NoError(t, err)

	// reserve 3 of 5
	res, err := svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 3, ReservedBy: "orderA"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ReservationID)
	assert.EqualValues(t, 2, res.AvailableStock)

	// a competing 3-unit reserve is rejected, reporting what is left
	res2, err := svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 3, ReservedBy: "orderB"})
	require.NoError(t, err)
	assert.False(t, res2.Success)
	assert.Equal(t, "insufficient stock", res2.Reason)
	assert.EqualValues(t, 2, res2.AvailableStock)

	// commit the winner
	ok, err := svc.Commit(ctx, res.ReservationID, "order-42")
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := svc.GetStock(ctx, "X")
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Available)
	assert.EqualValues(t, 0, snap.Reserved)
	assert.EqualValues(t, 2, snap.Total)

	// releasing a consumed reservation is refused
	ok, err = svc.Release(ctx, res.ReservationID, "late cancel")
	require.NoError(t, err)
	assert.False(t, ok)

	// exactly one outbox row per successful state change, typed and routed
	rows := outboxRows(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, "inventory.reserved", rows[0].Topic)
	assert.Equal(t, "inventory.committed", rows[1].Topic)

	env := decodeEnvelope(t, rows[0])
	assert.Equal(t, event.TypeReserved, env.EventType)
	assert.Equal(t, "inventory-service-test", env.Source)
	var payload event.ReservedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, res.ReservationID, payload.ReservationID)
	assert.EqualValues(t, 3, payload.Quantity)
	assert.EqualValues(t, 2, payload.AvailableStock)

	env = decodeEnvelope(t, rows[1])
	assert.Equal(t, event.TypeCommitted, env.EventType)
	var committed event.CommittedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &committed))
	assert.Equal(t, "order-42", committed.OrderID)
}

func TestReservationService_ReleaseRestoresStock(t *testing.T) {
	svc, r := newTestService(t, "svc_release", nil, nil)
	ctx := context.Background()

	_, err := svc.Restock(ctx, "Y", 4)
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, ReserveRequest{SKUID: "Y", Quantity: 4, ReservedBy: "cart-7"})
	require.NoError(t, err)
	require.True(t, res.Success)

	ok, err := svc.Release(ctx, res.ReservationID, "user_cancelled")
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := svc.GetStock(ctx, "Y")
	require.NoError(t, err)
	assert.EqualValues(t, 4, snap.Available)
	assert.EqualValues(t, 0, snap.Reserved)

	rows := outboxRows(t, r)
	require.Len(t, rows, 2)
	env := decodeEnvelope(t, rows[1])
	assert.Equal(t, event.TypeReleased, env.EventType)
	var released event.ReleasedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &released))
	assert.Equal(t, "user_cancelled", released.Reason)
}

func TestReservationService_Validation(t *testing.T) {
	svc, _ := newTestService(t, "svc_validation", nil, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, ReserveRequest{SKUID: "", Quantity: 1, ReservedBy: "a"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 0, ReservedBy: "a"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 1, ReservedBy: ""})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	res, err := svc.Reserve(ctx, ReserveRequest{SKUID: "nope", Quantity: 1, ReservedBy: "a"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "sku not found", res.Reason)
}

func TestReservationService_GetStockCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cached, _ := json.Marshal(repo.StockSnapshot{SKUID: "Z", Available: 7, Reserved: 1, Total: 8})
	mock.ExpectGet("stock:Z").SetVal(string(cached))

	svc, _ := newTestService(t, "svc_cachehit", rdb, nil)

	// no DB row for Z exists; the snapshot must come from the cache
	snap, err := svc.GetStock(context.Background(), "Z")
	require.NoError(t, err)
	assert.EqualValues(t, 7, snap.Available)
	assert.EqualValues(t, 1, snap.Reserved)
	assert.EqualValues(t, 8, snap.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationService_StrategySelection(t *testing.T) {
	svc, r := newTestService(t, "svc_strategy", nil, experiment.Static{Strategy: strategy.NamePessimistic})
	ctx := context.Background()

	_, err := svc.Restock(ctx, "X", 5)
	require.NoError(t, err)

	res, err := svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 1, ReservedBy: "subject-1"})
	require.NoError(t, err)
	require.True(t, res.Success)

	rsv, err := r.Reservations.Get(ctx, r.DB(ctx), res.ReservationID, false)
	require.NoError(t, err)
	assert.Equal(t, strategy.NamePessimistic, rsv.Strategy)
}

func TestReservationService_SweepExpired(t *testing.T) {
	svc, r := newTestService(t, "svc_sweep", nil, nil)
	ctx := context.Background()

	_, err := svc.Restock(ctx, "X", 5)
	require.NoError(t, err)

	// already past its TTL
	res, err := svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 2, ReservedBy: "cart-1", TTLSeconds: 1})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, r.DB(ctx).Model(&model.Reservation{}).
		Where("id = ?", res.ReservationID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	// still within its TTL, must survive the sweep
	fresh, err := svc.Reserve(ctx, ReserveRequest{SKUID: "X", Quantity: 1, ReservedBy: "cart-2"})
	require.NoError(t, err)
	require.True(t, fresh.Success)

	n, err := svc.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rsv, err := r.Reservations.Get(ctx, r.DB(ctx), res.ReservationID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusReleased, rsv.Status)
	require.NotNil(t, rsv.ReleaseReason)
	assert.Equal(t, "expired", *rsv.ReleaseReason)

	kept, err := r.Reservations.Get(ctx, r.DB(ctx), fresh.ReservationID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusReserved, kept.Status)

	snap, err := svc.GetStock(ctx, "X")
	require.NoError(t, err)
	assert.EqualValues(t, 4, snap.Available)
	assert.EqualValues(t, 1, snap.Reserved)
}
