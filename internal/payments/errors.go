package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrPaymentNotFound reports an unknown payment id.
func ErrPaymentNotFound(paymentID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").
		WithReason(pkgerrors.ReasonPaymentNotFound).
		WithDetails(map[string]any{"payment_id": paymentID.String()})
}

// ErrPaymentNotWaiting reports a payment that was already confirmed or rejected.
func ErrPaymentNotWaiting(paymentID uuid.UUID, status enums.PaymentStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment is already %s", status).
		WithReason(pkgerrors.ReasonPaymentNotWaiting).
		WithDetails(map[string]any{
			"payment_id": paymentID.String(),
			"status":     status,
		})
}
