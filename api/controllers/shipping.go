package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type shippingChangeRequest struct {
	Courier        *string `json:"courier,omitempty" validate:"omitempty,max=100"`
	TrackingNumber *string `json:"trackingNumber,omitempty" validate:"omitempty,max=100"`
	Status         *string `json:"status,omitempty"`
}

type shippingResultResponse struct {
	Shipping    *shippingResponse `json:"shipping"`
	OrderStatus string            `json:"orderStatus"`
}

func (p shippingChangeRequest) toChange() (shipping.Change, error) {
	change := shipping.Change{
		Courier:        trimmedOrNil(p.Courier),
		TrackingNumber: trimmedOrNil(p.TrackingNumber),
	}
	if p.Status != nil {
		status, err := enums.ParseShippingStatus(strings.ToUpper(strings.TrimSpace(*p.Status)))
		if err != nil {
			return shipping.Change{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping status").WithDetails(map[string]any{"status": *p.Status})
		}
		change.Status = &status
	}
	return change, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func newShippingResultResponse(result *shipping.Result) shippingResultResponse {
	return shippingResultResponse{
		Shipping:    newShippingResponse(&result.Shipping),
		OrderStatus: string(result.OrderStatus),
	}
}

// ShippingCreate opens the shipment of a paid order that has none yet.
func ShippingCreate(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shippingChangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		change, err := payload.toChange()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), shipping.CreateInput{
			OrderID: orderID,
			Change:  change,
			Actor:   actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newShippingResultResponse(result))
	}
}

// ShippingUpdate changes courier, tracking number or status of a shipment.
func ShippingUpdate(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shippingID, err := validators.ParseUUIDParam(r, "shippingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shippingChangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		change, err := payload.toChange()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), shipping.UpdateInput{
			ShippingID: shippingID,
			Change:     change,
			Actor:      actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newShippingResultResponse(result))
	}
}
