package model

import "time"

type ReservationStatus string

const (
	ReservationStatusReserved ReservationStatus = "RESERVED"
	ReservationStatusConsumed ReservationStatus = "CONSUMED"
	ReservationStatusReleased ReservationStatus = "RELEASED"
)

// Reservation is a time-bounded claim on a quantity of a SKU's stock.
// RESERVED is the only non-terminal status; CONSUMED and RELEASED are final.
type Reservation struct {
	ID            string            `gorm:"primaryKey;size:36"`
	SKUID         string            `gorm:"column:sku_id;size:64;index;not null"`
	Quantity      int64             `gorm:"not null"`
	ReservedBy    string            `gorm:"size:64;not null"`
	Status        ReservationStatus `gorm:"size:16;index;not null"`
	Strategy      string            `gorm:"size:16;not null"`
	OrderID       *string           `gorm:"size:64"`
	ReleaseReason *string           `gorm:"size:128"`
	ExpiresAt     time.Time         `gorm:"index;not null"`
	CreatedAt     time.Time         `gorm:"autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime"`
}

func (Reservation) TableName() string { return "reservation" }
