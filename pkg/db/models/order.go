package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is created once at checkout; afterwards only its status moves.
// StockRestored guards the inventory restoration routine so it runs at most once.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID      uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus  `gorm:"column:status;type:varchar(32);not null"`
	TotalAmount     decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingInfo    types.ShippingInfo `gorm:"column:shipping_info;type:jsonb;serializer:json"`
	StockRestored   bool               `gorm:"column:stock_restored;not null;default:false"`
	StockRestoredAt *time.Time         `gorm:"column:stock_restored_at"`
	Items           []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is the immutable price snapshot taken at checkout.
type OrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	OriginalUnitPrice decimal.Decimal `gorm:"column:original_unit_price;type:numeric(12,2);not null"`
	DiscountPercent   decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is quantity times the locked unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
