package shipping

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists shipping records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shipping *models.Shipping) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shipping, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipping, error)
	Save(ctx context.Context, shipping *models.Shipping, expected enums.ShippingStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipping repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shipping *models.Shipping) error {
	return r.db.WithContext(ctx).Create(shipping).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shipping, error) {
	var shipping models.Shipping
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shipping).Error; err != nil {
		return nil, err
	}
	return &shipping, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipping, error) {
	var shipping models.Shipping
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&shipping).Error; err != nil {
		return nil, err
	}
	return &shipping, nil
}

// Save writes the mutable columns while the stored status still equals expected.
func (r *repository) Save(ctx context.Context, shipping *models.Shipping, expected enums.ShippingStatus) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Shipping{}).
		Where("id = ? AND status = ?", shipping.ID, expected).
		Updates(map[string]any{
			"status":          shipping.Status,
			"courier":         shipping.Courier,
			"tracking_number": shipping.TrackingNumber,
			"shipped_at":      shipping.ShippedAt,
			"delivered_at":    shipping.DeliveredAt,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		shipping.UpdatedAt = now
	}
	return res.RowsAffected == 1, nil
}
