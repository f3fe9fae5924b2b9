package checkout

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrEmptyCart reports a checkout attempt on a cart with no lines.
func ErrEmptyCart(customerID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty").
		WithReason(pkgerrors.ReasonEmptyCart).
		WithDetails(map[string]any{"customer_id": customerID.String()})
}
