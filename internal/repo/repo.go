package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eshop-platform/inventory-service/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stockCacheTTL = 5 * time.Minute

// StockSnapshot is the cached read-model of one SKU's counters.
type StockSnapshot struct {
	SKUID     string `json:"skuId"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
	Total     int64  `json:"total"`
}

// Repository bundles the persistence collaborators: the stock ledger, the
// reservation store and the outbox writer share the caller's transaction;
// the outbox poll/claim/mark operations and the cache run on their own
// connections.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger

	Ledger       StockLedger
	Reservations ReservationStore
	Outbox       OutboxWriter
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// PollOutbox pulls unsent, unlocked rows below the attempts cutoff, oldest
// first.
func (r *Repository) PollOutbox(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL AND locked = ? AND attempts < ?", false, maxAttempts).
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// ClaimOutbox locks one row for delivery. The locked=false guard makes the
// claim race-safe across publisher instances: only one wins, the rest see
// false.
func (r *Repository) ClaimOutbox(ctx context.Context, id uint64) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND locked = ? AND sent_at IS NULL", id, false).
		Updates(map[string]interface{}{"locked": true, "locked_at": &now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkOutboxSent finalizes a delivered row. Terminal: the row is never
// touched again.
func (r *Repository) MarkOutboxSent(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"sent_at": &now, "locked": false, "locked_at": nil}).Error
}

// MarkOutboxFailed counts the attempt and unlocks the row for a later tick.
func (r *Repository) MarkOutboxFailed(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":  gorm.Expr("attempts + 1"),
			"locked":    false,
			"locked_at": nil,
		}).Error
}

// ReleaseStaleOutboxLocks unlocks rows a crashed publisher left behind.
func (r *Repository) ReleaseStaleOutboxLocks(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("locked = ? AND sent_at IS NULL AND locked_at < ?", true, cutoff).
		Updates(map[string]interface{}{"locked": false, "locked_at": nil})
	return res.RowsAffected, res.Error
}

// PublishEvent sends one outbox row to Kafka under the row's topic.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Topic: evt.Topic,
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheStock writes the SKU read-model to Redis. Best effort: callers log
// failures and move on.
func (r *Repository) CacheStock(ctx context.Context, s *model.StockItem) error {
	if r.rdb == nil {
		return nil
	}
	snap := StockSnapshot{SKUID: s.SKUID, Available: s.Available(), Reserved: s.Reserved, Total: s.Quantity}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, stockCacheKey(s.SKUID), raw, stockCacheTTL).Err()
}

// GetCachedStock reads the SKU read-model from Redis.
func (r *Repository) GetCachedStock(ctx context.Context, skuID string) (*StockSnapshot, error) {
	if r.rdb == nil {
		return nil, redis.Nil
	}
	raw, err := r.rdb.Get(ctx, stockCacheKey(skuID)).Result()
	if err != nil {
		return nil, err
	}
	var snap StockSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func stockCacheKey(skuID string) string { return "stock:" + skuID }
