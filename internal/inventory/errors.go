package inventory

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrInsufficientStock reports that product stock cannot cover the requested quantity.
func ErrInsufficientStock(productID uuid.UUID, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
		WithReason(pkgerrors.ReasonInsufficientStock).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"available":  available,
			"requested":  requested,
		})
}

// ErrProductUnavailable reports a soft-deleted product.
func ErrProductUnavailable(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "product is no longer available").
		WithReason(pkgerrors.ReasonProductUnavailable).
		WithDetails(map[string]any{"product_id": productID.String()})
}

// ErrProductNotFound reports an unknown product id.
func ErrProductNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": productID.String()})
}
