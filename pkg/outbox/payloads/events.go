package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once a checkout commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	ShippingID  uuid.UUID       `json:"shipping_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderStatusChangedEvent records every successful order transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// PaymentSlipSubmittedEvent is emitted when the customer uploads a transfer slip.
type PaymentSlipSubmittedEvent struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
	SlipURL   string    `json:"slip_url"`
}

// PaymentDecisionEvent is emitted when an admin confirms or rejects a payment.
type PaymentDecisionEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	Status    enums.PaymentStatus `json:"status"`
	DecidedAt time.Time           `json:"decided_at"`
}

// StockRestoredEvent is emitted when a cancelled order returns its units.
type StockRestoredEvent struct {
	OrderID    uuid.UUID      `json:"order_id"`
	Items      []RestoredItem `json:"items"`
	RestoredAt time.Time      `json:"restored_at"`
}

type RestoredItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// ShippingUpdatedEvent is emitted on every shipping status or tracking change.
type ShippingUpdatedEvent struct {
	ShippingID     uuid.UUID            `json:"shipping_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	Status         enums.ShippingStatus `json:"status"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
}
