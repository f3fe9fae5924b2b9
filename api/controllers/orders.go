package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type orderDetailResponse struct {
	orderResponse
	Payment  *paymentResponse  `json:"payment,omitempty"`
	Shipping *shippingResponse `json:"shipping,omitempty"`
}

func newOrderDetailResponse(detail *orders.Detail) orderDetailResponse {
	return orderDetailResponse{
		orderResponse: newOrderResponse(detail.Order),
		Payment:       newPaymentResponse(detail.Payment),
		Shipping:      newShippingResponse(detail.Shipping),
	}
}

type orderStatusRequest struct {
	Status          string     `json:"status" validate:"required"`
	PaymentVerified bool       `json:"paymentVerified"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
}

// OrderDetail returns the order with its items, payment and shipping. Customers
// only see their own orders.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		customerID, err := customerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), orderID, orders.Viewer{
			CustomerID: customerID,
			Role:       middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderDetailResponse(detail))
	}
}

// OrderUpdateStatus moves an order along the transition table on behalf of an admin.
func OrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		detail, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:         orderID,
			Status:          status,
			PaymentVerified: payload.PaymentVerified,
			VerifiedAt:      payload.VerifiedAt,
			Actor:           actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderDetailResponse(detail))
	}
}
