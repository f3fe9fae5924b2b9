package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrOrderNotFound reports an unknown order id.
func ErrOrderNotFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID.String()})
}

// ErrInvalidTransition reports an edge missing from the order transition table.
func ErrInvalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", from, to).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{
			"from": from,
			"to":   to,
		})
}

// ErrShippingDrivenStatus refuses a direct move to a status that only the
// shipping record may drive.
func ErrShippingDrivenStatus(to enums.OrderStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order status %s follows the shipping record; update the shipping instead", to).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{"to": to})
}

func errStatusChanged(orderID uuid.UUID, expected enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
		WithDetails(map[string]any{
			"order_id": orderID.String(),
			"expected": expected,
		})
}
