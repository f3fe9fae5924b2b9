package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	CustomerID   uuid.UUID           `json:"customerId"`
	Status       string              `json:"status"`
	TotalAmount  decimal.Decimal     `json:"totalAmount"`
	ShippingInfo types.ShippingInfo  `json:"shippingInfo"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type orderItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"productId"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	OriginalUnitPrice decimal.Decimal `json:"originalUnitPrice"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	LineTotal         decimal.Decimal `json:"lineTotal"`
}

type paymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"orderId"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	SlipURL     *string         `json:"slipUrl,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	RejectedAt  *time.Time      `json:"rejectedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type shippingResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrderID        uuid.UUID  `json:"orderId"`
	Status         string     `json:"status"`
	Courier        *string    `json:"courier,omitempty"`
	TrackingNumber *string    `json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type productResponse struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type movementResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"productId"`
	Type          string     `json:"type"`
	Direction     string     `json:"direction"`
	Quantity      int        `json:"quantity"`
	StockAfter    int        `json:"stockAfter"`
	ReferenceType string     `json:"referenceType"`
	ReferenceID   *uuid.UUID `json:"referenceId,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			OriginalUnitPrice: item.OriginalUnitPrice,
			DiscountPercent:   item.DiscountPercent,
			LineTotal:         item.LineTotal(),
		})
	}
	return orderResponse{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		ShippingInfo: order.ShippingInfo,
		Items:        items,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
}

func newPaymentResponse(payment *models.Payment) *paymentResponse {
	if payment == nil {
		return nil
	}
	return &paymentResponse{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		Status:      string(payment.Status),
		Amount:      payment.Amount,
		SlipURL:     payment.SlipURL,
		ConfirmedAt: payment.ConfirmedAt,
		RejectedAt:  payment.RejectedAt,
		CreatedAt:   payment.CreatedAt,
		UpdatedAt:   payment.UpdatedAt,
	}
}

func newShippingResponse(shipping *models.Shipping) *shippingResponse {
	if shipping == nil {
		return nil
	}
	return &shippingResponse{
		ID:             shipping.ID,
		OrderID:        shipping.OrderID,
		Status:         string(shipping.Status),
		Courier:        shipping.Courier,
		TrackingNumber: shipping.TrackingNumber,
		ShippedAt:      shipping.ShippedAt,
		DeliveredAt:    shipping.DeliveredAt,
		CreatedAt:      shipping.CreatedAt,
		UpdatedAt:      shipping.UpdatedAt,
	}
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.Price,
		Stock: product.Stock,
	}
}

func newMovementResponse(movement *models.StockMovement) *movementResponse {
	if movement == nil {
		return nil
	}
	return &movementResponse{
		ID:            movement.ID,
		ProductID:     movement.ProductID,
		Type:          string(movement.Type),
		Direction:     string(movement.Direction),
		Quantity:      movement.Quantity,
		StockAfter:    movement.StockAfter,
		ReferenceType: string(movement.ReferenceType),
		ReferenceID:   movement.ReferenceID,
		Notes:         movement.Notes,
		CreatedAt:     movement.CreatedAt,
	}
}
