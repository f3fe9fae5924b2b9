package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const maxNotesLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjustmentRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
	Type      string    `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type productReceiveRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initialStock" validate:"gte=0"`
	Notes        *string         `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type stockChangeResponse struct {
	Product  productResponse   `json:"product"`
	Movement *movementResponse `json:"movement"`
}

type stockHistoryResponse struct {
	ProductID     uuid.UUID          `json:"productId"`
	Stock         int                `json:"stock"`
	Reconstructed int                `json:"reconstructed"`
	Consistent    bool               `json:"consistent"`
	Total         int                `json:"total"`
	Movements     []movementResponse `json:"movements"`
}

func newStockChangeResponse(result *inventory.AdjustResult) stockChangeResponse {
	return stockChangeResponse{
		Product:  newProductResponse(result.Product),
		Movement: newMovementResponse(result.Movement),
	}
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	cleaned := validators.CleanText(*notes, maxNotesLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// StockAdjustment applies an administrative IN, OUT or ADJUSTMENT movement.
func StockAdjustment(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload stockAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movementType, err := enums.ParseStockMovementType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		result, err := svc.ApplyAdjustment(r.Context(), inventory.AdjustmentRequest{
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
			Type:      movementType,
			Notes:     sanitizeNotes(payload.Notes),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStockChangeResponse(result))
	}
}

// StockReceive registers a product with its opening stock movement.
func StockReceive(svc inventory.Service, tx txRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || tx == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload productReceiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *inventory.AdjustResult
		err := tx.WithTx(r.Context(), func(db *gorm.DB) error {
			var err error
			result, err = svc.Receive(r.Context(), db, inventory.ReceiveInput{
				Name:         validators.CleanText(payload.Name, 200),
				Price:        payload.Price,
				InitialStock: payload.InitialStock,
				Notes:        sanitizeNotes(payload.Notes),
			})
			return err
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newStockChangeResponse(result))
	}
}

// StockMovements lists the most recent movements of a product next to the
// stock rebuilt from its full log.
func StockMovements(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movements := history.Movements
		if len(movements) > limit {
			movements = movements[len(movements)-limit:]
		}
		out := make([]movementResponse, 0, len(movements))
		for i := range movements {
			out = append(out, *newMovementResponse(&movements[i]))
		}

		responses.WriteSuccess(w, stockHistoryResponse{
			ProductID:     history.ProductID,
			Stock:         history.Stock,
			Reconstructed: history.Reconstructed,
			Consistent:    history.Consistent(),
			Total:         len(history.Movements),
			Movements:     out,
		})
	}
}
