package model

import "time"

// OutboxEvent is one row of the transactional outbox. SentAt is terminal:
// once set the row is never mutated again. Locked marks a row claimed by a
// publisher instance; LockedAt lets a sweep reclaim locks from crashed
// publishers.
type OutboxEvent struct {
	ID        uint64    `gorm:"primaryKey"`
	Topic     string    `gorm:"size:128;not null"`
	Payload   string    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	SentAt    *time.Time
	Attempts  int  `gorm:"not null;default:0"`
	Locked    bool `gorm:"not null;default:false"`
	LockedAt  *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
