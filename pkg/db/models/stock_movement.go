package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// StockMovement is an append-only inventory log row. Quantity is always positive;
// Direction carries the sign.
type StockMovement struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID                `gorm:"column:product_id;type:uuid;not null;index"`
	Type          enums.StockMovementType  `gorm:"column:type;type:varchar(16);not null"`
	Direction     enums.StockDirection     `gorm:"column:direction;type:varchar(16);not null"`
	Quantity      int                      `gorm:"column:quantity;not null"`
	StockAfter    int                      `gorm:"column:stock_after;not null"`
	ReferenceType enums.StockReferenceType `gorm:"column:reference_type;type:varchar(16);not null"`
	ReferenceID   *uuid.UUID               `gorm:"column:reference_id;type:uuid;index"`
	Notes         *string                  `gorm:"column:notes"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SignedQuantity returns the quantity with the direction applied.
func (m StockMovement) SignedQuantity() int {
	return m.Direction.Sign() * m.Quantity
}
