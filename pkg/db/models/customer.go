package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Customer mirrors the identity-provider subject and keeps the last shipping info.
type Customer struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ShippingInfo *types.ShippingInfo `gorm:"column:shipping_info;type:jsonb;serializer:json"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
