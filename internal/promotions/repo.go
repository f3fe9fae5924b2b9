package promotions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads promotions owned by the catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, promotion *models.Promotion) error
	ListActiveByProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Promotion, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, promotion *models.Promotion) error {
	return r.db.WithContext(ctx).Create(promotion).Error
}

// ListActiveByProducts returns flagged-active promotions ordered by id. The date
// window is checked by the caller against its own clock.
func (r *repository) ListActiveByProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Promotion, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var rows []models.Promotion
	if err := r.db.WithContext(ctx).
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
