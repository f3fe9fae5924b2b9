package shipping

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrShippingAlreadyExists reports a second shipping record for one order.
func ErrShippingAlreadyExists(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a shipping record").
		WithReason(pkgerrors.ReasonShippingAlreadyExists).
		WithDetails(map[string]any{"order_id": orderID.String()})
}

// ErrShippingNotFound reports an unknown shipping id.
func ErrShippingNotFound(shippingID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "shipping not found").
		WithDetails(map[string]any{"shipping_id": shippingID.String()})
}

// ErrInvalidShippingTransition reports a backwards or skipped shipping step.
func ErrInvalidShippingTransition(from, to enums.ShippingStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "shipping cannot move from %s to %s", from, to).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{
			"from": from,
			"to":   to,
		})
}
