package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func TestApplyRoundsToCents(t *testing.T) {
	product := models.Product{ID: uuid.New(), Price: decimal.RequireFromString("19.99")}
	promo := &models.Promotion{ID: uuid.New(), DiscountPercent: decimal.NewFromInt(15)}

	price := Apply(product, promo)
	assert.True(t, decimal.RequireFromString("16.99").Equal(price.Effective), price.Effective.String())
	assert.True(t, price.Discounted())

	plain := Apply(product, nil)
	assert.True(t, product.Price.Equal(plain.Effective))
	assert.False(t, plain.Discounted())
}

func TestFirstActivePicksLowestIDInWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")
	expired := uuid.MustParse("00000000-0000-0000-0000-000000000000")

	promos := []models.Promotion{
		{ID: high, IsActive: true, DiscountPercent: decimal.NewFromInt(50), StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)},
		{ID: low, IsActive: true, DiscountPercent: decimal.NewFromInt(10), StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)},
		{ID: expired, IsActive: true, DiscountPercent: decimal.NewFromInt(90), StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(-time.Hour)},
	}

	got := FirstActive(promos, now)
	require.NotNil(t, got)
	assert.Equal(t, low, got.ID)

	assert.Nil(t, FirstActive(promos[2:], now))
	assert.Nil(t, FirstActive(nil, now))
}

func TestActiveWindowIsInclusive(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	promo := models.Promotion{IsActive: true, StartDate: start, EndDate: end}

	assert.True(t, promo.ActiveAt(start))
	assert.True(t, promo.ActiveAt(end))
	assert.False(t, promo.ActiveAt(end.Add(time.Nanosecond)))
	promo.IsActive = false
	assert.False(t, promo.ActiveAt(start))
}

func TestPricesFromRepository(t *testing.T) {
	conn, _ := dbtest.Open(t)
	ctx := context.Background()
	now := time.Now().UTC()
	repo := NewRepository(conn)

	discounted := models.Product{Name: "A", Price: decimal.NewFromInt(100), Stock: 5}
	plain := models.Product{Name: "B", Price: decimal.NewFromInt(40), Stock: 5}
	require.NoError(t, conn.Create(&discounted).Error)
	require.NoError(t, conn.Create(&plain).Error)

	require.NoError(t, repo.Create(ctx, &models.Promotion{
		ProductID:       discounted.ID,
		DiscountPercent: decimal.NewFromInt(10),
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(time.Hour),
		IsActive:        true,
	}))
	inactive := models.Promotion{
		ProductID:       plain.ID,
		DiscountPercent: decimal.NewFromInt(30),
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(time.Hour),
		IsActive:        true,
	}
	require.NoError(t, repo.Create(ctx, &inactive))
	require.NoError(t, conn.Model(&inactive).Update("is_active", false).Error)

	pricer, err := NewPricer(repo, func() time.Time { return now })
	require.NoError(t, err)

	prices, err := pricer.Prices(ctx, []models.Product{discounted, plain})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(prices[discounted.ID].Effective))
	assert.True(t, decimal.NewFromInt(40).Equal(prices[plain.ID].Effective))
	assert.False(t, prices[plain.ID].Discounted())
}
