package model

import "time"

// StockItem is the authoritative per-SKU counter. Quantity is the total on
// hand, Reserved the portion held by open reservations; sellable stock is
// the difference. Version backs the optimistic update path.
type StockItem struct {
	ID        uint64    `gorm:"primaryKey"`
	SKUID     string    `gorm:"column:sku_id;size:64;uniqueIndex;not null"`
	Quantity  int64     `gorm:"not null;default:0"`
	Reserved  int64     `gorm:"not null;default:0"`
	Version   uint64    `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (s *StockItem) Available() int64 { return s.Quantity - s.Reserved }

func (StockItem) TableName() string { return "stock_item" }
