package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const slipFormField = "slip"

type paymentConfirmRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm reject"`
}

type paymentResultResponse struct {
	Payment     *paymentResponse       `json:"payment"`
	OrderID     string                 `json:"orderId"`
	OrderStatus string                 `json:"orderStatus"`
	Restored    []restoredItemResponse `json:"restored,omitempty"`
}

type restoredItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func newRestoredResponse(items []payloads.RestoredItem) []restoredItemResponse {
	if len(items) == 0 {
		return nil
	}
	out := make([]restoredItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, restoredItemResponse{ProductID: item.ProductID.String(), Quantity: item.Quantity})
	}
	return out
}

func newPaymentResultResponse(result *payments.Result) paymentResultResponse {
	return paymentResultResponse{
		Payment:     newPaymentResponse(&result.Payment),
		OrderID:     result.Order.ID.String(),
		OrderStatus: string(result.Order.Status),
		Restored:    newRestoredResponse(result.Restored),
	}
}

// PaymentConfirm records the reviewer decision on a waiting payment.
func PaymentConfirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), payments.ConfirmInput{
			PaymentID: paymentID,
			Action:    enums.PaymentAction(payload.Action),
			Actor:     actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResultResponse(result))
	}
}

// PaymentSlip accepts a multipart transfer slip from the order's customer.
func PaymentSlip(svc payments.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// multipart framing needs headroom above the file limit
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slip exceeds the upload limit").WithDetails(map[string]any{"max_bytes": maxBytes}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart form required"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, _, err := r.FormFile(slipFormField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "slip file is required").WithDetails(map[string]any{"field": slipFormField}))
			return
		}
		defer file.Close()

		result, err := svc.SubmitSlip(r.Context(), payments.SlipInput{
			PaymentID:  paymentID,
			CustomerID: customerID,
			Body:       file,
			Actor:      actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResultResponse(result))
	}
}
