package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service keeps the convenience copy of the customer's last shipping info.
type Service interface {
	SaveShippingInfo(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, info types.ShippingInfo) error
	Get(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo}, nil
}

// SaveShippingInfo composes into tx when given one.
func (s *service) SaveShippingInfo(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, info types.ShippingInfo) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	normalized := info.Normalize()
	customer := &models.Customer{ID: customerID, ShippingInfo: &normalized}
	if err := s.repo.WithTx(tx).UpsertShippingInfo(ctx, customer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save shipping info")
	}
	return nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}
