package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Summary is the priced view of a cart.
type Summary struct {
	CartID           uuid.UUID       `json:"cartId"`
	Items            []SummaryItem   `json:"items"`
	TotalItems       int             `json:"totalItems"`
	OriginalAmount   decimal.Decimal `json:"originalAmount"`
	DiscountedAmount decimal.Decimal `json:"discountedAmount"`
	TotalDiscount    decimal.Decimal `json:"totalDiscount"`
}

// SummaryItem is one priced cart line.
type SummaryItem struct {
	ItemID          uuid.UUID       `json:"itemId"`
	ProductID       uuid.UUID       `json:"productId"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	Stock           int             `json:"stock"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	EffectivePrice  decimal.Decimal `json:"effectivePrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	OriginalTotal   decimal.Decimal `json:"originalTotal"`
	LineTotal       decimal.Decimal `json:"lineTotal"`
}

// Summarize prices the cart lines. Lines whose product is missing or
// soft-deleted are skipped; they stay in storage.
func Summarize(cartID uuid.UUID, items []models.CartItem, products map[uuid.UUID]models.Product, prices map[uuid.UUID]promotions.Price) Summary {
	summary := Summary{
		CartID:           cartID,
		Items:            make([]SummaryItem, 0, len(items)),
		OriginalAmount:   decimal.Zero,
		DiscountedAmount: decimal.Zero,
		TotalDiscount:    decimal.Zero,
	}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || product.IsDeleted() {
			continue
		}
		price, ok := prices[item.ProductID]
		if !ok {
			price = promotions.Apply(product, nil)
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		line := SummaryItem{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			Name:            product.Name,
			Quantity:        item.Quantity,
			Stock:           product.Stock,
			UnitPrice:       price.Original,
			EffectivePrice:  price.Effective,
			DiscountPercent: price.DiscountPercent,
			OriginalTotal:   price.Original.Mul(qty),
			LineTotal:       price.Effective.Mul(qty),
		}
		summary.Items = append(summary.Items, line)
		summary.TotalItems += item.Quantity
		summary.OriginalAmount = summary.OriginalAmount.Add(line.OriginalTotal)
		summary.DiscountedAmount = summary.DiscountedAmount.Add(line.LineTotal)
	}
	summary.TotalDiscount = summary.OriginalAmount.Sub(summary.DiscountedAmount)
	return summary
}
