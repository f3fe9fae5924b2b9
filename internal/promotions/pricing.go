package promotions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Price is the promotion-aware unit price of one product at one instant.
type Price struct {
	ProductID       uuid.UUID
	Original        decimal.Decimal
	Effective       decimal.Decimal
	DiscountPercent decimal.Decimal
	PromotionID     *uuid.UUID
}

// Discounted reports whether a promotion lowered the price.
func (p Price) Discounted() bool {
	return p.PromotionID != nil
}

// Pricer resolves effective unit prices.
type Pricer interface {
	WithTx(tx *gorm.DB) Pricer
	Prices(ctx context.Context, products []models.Product) (map[uuid.UUID]Price, error)
}

type pricer struct {
	repo Repository
	now  func() time.Time
}

// NewPricer builds a Pricer. A nil clock defaults to time.Now.
func NewPricer(repo Repository, now func() time.Time) (Pricer, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &pricer{repo: repo, now: now}, nil
}

func (p *pricer) WithTx(tx *gorm.DB) Pricer {
	return &pricer{repo: p.repo.WithTx(tx), now: p.now}
}

func (p *pricer) Prices(ctx context.Context, products []models.Product) (map[uuid.UUID]Price, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
	}
	promos, err := p.repo.ListActiveByProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotions")
	}

	now := p.now()
	byProduct := make(map[uuid.UUID][]models.Promotion, len(promos))
	for _, promo := range promos {
		byProduct[promo.ProductID] = append(byProduct[promo.ProductID], promo)
	}

	out := make(map[uuid.UUID]Price, len(products))
	for _, product := range products {
		out[product.ID] = Apply(product, FirstActive(byProduct[product.ID], now))
	}
	return out, nil
}

// FirstActive picks the active promotion with the lowest id. Overlapping
// promotions are never combined.
func FirstActive(promos []models.Promotion, now time.Time) *models.Promotion {
	candidates := make([]models.Promotion, 0, len(promos))
	for _, promo := range promos {
		if promo.ActiveAt(now) {
			candidates = append(candidates, promo)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return &candidates[0]
}

// Apply computes the effective unit price, rounded to cents.
func Apply(product models.Product, promo *models.Promotion) Price {
	price := Price{
		ProductID:       product.ID,
		Original:        product.Price,
		Effective:       product.Price,
		DiscountPercent: decimal.Zero,
	}
	if promo == nil {
		return price
	}
	pct := promo.DiscountPercent
	if pct.LessThanOrEqual(decimal.Zero) {
		return price
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	price.Effective = product.Price.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
	price.DiscountPercent = pct
	id := promo.ID
	price.PromotionID = &id
	return price
}
