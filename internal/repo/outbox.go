package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eshop-platform/inventory-service/internal/event"
	"github.com/eshop-platform/inventory-service/internal/model"
	"gorm.io/gorm"
)

// OutboxWriter appends event rows inside the caller's transaction, so the
// business mutation and its event either both commit or both roll back.
type OutboxWriter struct{}

// Append validates the envelope and inserts one outbox row. A malformed
// envelope fails fast and aborts the surrounding transaction.
func (OutboxWriter) Append(ctx context.Context, tx *gorm.DB, topic string, env *event.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if topic == "" {
		return fmt.Errorf("invalid outbox append: empty topic for event type %s", env.EventType)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	row := &model.OutboxEvent{Topic: topic, Payload: string(payload)}
	return tx.WithContext(ctx).Create(row).Error
}
