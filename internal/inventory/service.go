package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Ledger owns product stock and the append-only movement log. Mutating methods
// compose into the caller's transaction and never open their own.
type Ledger interface {
	Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustResult, error)
	SetStock(ctx context.Context, tx *gorm.DB, input SetStockInput) (*AdjustResult, error)
	Receive(ctx context.Context, tx *gorm.DB, input ReceiveInput) (*AdjustResult, error)
	CurrentStock(ctx context.Context, productID uuid.UUID) (int, error)
	History(ctx context.Context, productID uuid.UUID) (*History, error)
}

// Service is the Ledger plus the administrative adjustment command, which runs
// in its own transaction.
type Service interface {
	Ledger
	ApplyAdjustment(ctx context.Context, input AdjustmentRequest) (*AdjustResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AdjustInput describes one signed stock change.
type AdjustInput struct {
	ProductID     uuid.UUID
	Delta         int
	Type          enums.StockMovementType
	ReferenceType enums.StockReferenceType
	ReferenceID   *uuid.UUID
	Notes         *string
}

// SetStockInput sets stock to an explicit target, logging the difference.
type SetStockInput struct {
	ProductID   uuid.UUID
	Target      int
	ReferenceID *uuid.UUID
	Notes       *string
}

// ReceiveInput registers a new product with its opening stock.
type ReceiveInput struct {
	Name         string
	Price        decimal.Decimal
	InitialStock int
	Notes        *string
}

// AdjustmentRequest is the administrative stock command: IN and OUT move by
// Quantity, ADJUSTMENT sets stock to Quantity.
type AdjustmentRequest struct {
	ProductID uuid.UUID
	Quantity  int
	Type      enums.StockMovementType
	Notes     *string
}

// AdjustResult carries the product after the change and the movement written.
// Movement is nil when nothing changed.
type AdjustResult struct {
	Product  models.Product
	Movement *models.StockMovement
}

// History is the movement log of a product with the stock rebuilt from zero.
type History struct {
	ProductID     uuid.UUID
	Stock         int
	Reconstructed int
	Movements     []models.StockMovement
}

// Consistent reports whether the stored stock matches the replayed log.
func (h History) Consistent() bool {
	return h.Stock == h.Reconstructed
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.Lifecycle
	logg    *logger.Logger
}

// NewService wires the inventory ledger.
func NewService(repo Repository, tx txRunner, lifecycle *metrics.Lifecycle, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, metrics: lifecycle, logg: logg}, nil
}

func (s *service) Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*AdjustResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validateAdjust(input); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	qty := input.Delta
	direction := enums.StockDirectionIncrease
	if input.Delta < 0 {
		qty = -input.Delta
		direction = enums.StockDirectionDecrease
	}

	if direction == enums.StockDirectionDecrease {
		ok, err := repo.DecrementStock(ctx, input.ProductID, qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return nil, s.explainRejectedDecrement(ctx, repo, input.ProductID, qty)
		}
	} else {
		ok, err := repo.IncrementStock(ctx, input.ProductID, qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
		if !ok {
			return nil, ErrProductNotFound(input.ProductID)
		}
	}

	product, err := repo.FindProduct(ctx, input.ProductID)
	if err != nil {
		return nil, mapProductErr(err, input.ProductID)
	}

	movement := &models.StockMovement{
		ProductID:     input.ProductID,
		Type:          input.Type,
		Direction:     direction,
		Quantity:      qty,
		StockAfter:    product.Stock,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Notes:         normalizeNotes(input.Notes),
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}

	s.observe(ctx, movement)
	return &AdjustResult{Product: *product, Movement: movement}, nil
}

func (s *service) SetStock(ctx context.Context, tx *gorm.DB, input SetStockInput) (*AdjustResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Target < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target stock must be zero or greater")
	}
	repo := s.repo.WithTx(tx)

	product, err := repo.FindProductForUpdate(ctx, input.ProductID)
	if err != nil {
		return nil, mapProductErr(err, input.ProductID)
	}

	delta := input.Target - product.Stock
	if delta == 0 {
		return &AdjustResult{Product: *product}, nil
	}
	if err := repo.SetStock(ctx, input.ProductID, input.Target); err != nil {
		return nil, mapProductErr(err, input.ProductID)
	}
	product.Stock = input.Target

	direction := enums.StockDirectionIncrease
	qty := delta
	if delta < 0 {
		direction = enums.StockDirectionDecrease
		qty = -delta
	}
	movement := &models.StockMovement{
		ProductID:     input.ProductID,
		Type:          enums.StockMovementAdjustment,
		Direction:     direction,
		Quantity:      qty,
		StockAfter:    input.Target,
		ReferenceType: enums.StockReferenceAdjustment,
		ReferenceID:   input.ReferenceID,
		Notes:         normalizeNotes(input.Notes),
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}

	s.observe(ctx, movement)
	return &AdjustResult{Product: *product, Movement: movement}, nil
}

func (s *service) Receive(ctx context.Context, tx *gorm.DB, input ReceiveInput) (*AdjustResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be zero or greater")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must be zero or greater")
	}
	repo := s.repo.WithTx(tx)

	product := &models.Product{
		Name:  name,
		Price: input.Price.Round(2),
		Stock: input.InitialStock,
	}
	if err := repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	if input.InitialStock == 0 {
		return &AdjustResult{Product: *product}, nil
	}

	movement := &models.StockMovement{
		ProductID:     product.ID,
		Type:          enums.StockMovementIn,
		Direction:     enums.StockDirectionIncrease,
		Quantity:      input.InitialStock,
		StockAfter:    input.InitialStock,
		ReferenceType: enums.StockReferenceAdjustment,
		Notes:         normalizeNotes(input.Notes),
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}
	s.observe(ctx, movement)
	return &AdjustResult{Product: *product, Movement: movement}, nil
}

func (s *service) CurrentStock(ctx context.Context, productID uuid.UUID) (int, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return 0, mapProductErr(err, productID)
	}
	return product.Stock, nil
}

func (s *service) History(ctx context.Context, productID uuid.UUID) (*History, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err, productID)
	}
	movements, err := s.repo.ListMovements(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return &History{
		ProductID:     productID,
		Stock:         product.Stock,
		Reconstructed: Reconstruct(movements),
		Movements:     movements,
	}, nil
}

func (s *service) ApplyAdjustment(ctx context.Context, input AdjustmentRequest) (*AdjustResult, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var result *AdjustResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		switch input.Type {
		case enums.StockMovementIn, enums.StockMovementOut:
			if input.Quantity < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
			}
			delta := input.Quantity
			if input.Type == enums.StockMovementOut {
				delta = -delta
			}
			result, err = s.Adjust(ctx, tx, AdjustInput{
				ProductID:     input.ProductID,
				Delta:         delta,
				Type:          input.Type,
				ReferenceType: enums.StockReferenceAdjustment,
				Notes:         input.Notes,
			})
		case enums.StockMovementAdjustment:
			result, err = s.SetStock(ctx, tx, SetStockInput{
				ProductID: input.ProductID,
				Target:    input.Quantity,
				Notes:     input.Notes,
			})
		default:
			return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", input.Type)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id": input.ProductID.String(),
		"type":       input.Type,
		"stock":      result.Product.Stock,
	})
	s.logg.Info(logCtx, "stock.adjusted")
	return result, nil
}

// Reconstruct replays movements from zero.
func Reconstruct(movements []models.StockMovement) int {
	total := 0
	for _, m := range movements {
		total += m.SignedQuantity()
	}
	return total
}

func (s *service) explainRejectedDecrement(ctx context.Context, repo Repository, productID uuid.UUID, qty int) error {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		return mapProductErr(err, productID)
	}
	if product.IsDeleted() {
		return ErrProductUnavailable(productID)
	}
	return ErrInsufficientStock(productID, product.Stock, qty)
}

func (s *service) observe(ctx context.Context, movement *models.StockMovement) {
	s.metrics.ObserveStockMovement(string(movement.Type), string(movement.ReferenceType), string(movement.Direction), movement.Quantity)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":     movement.ProductID.String(),
		"movement_type":  movement.Type,
		"direction":      movement.Direction,
		"quantity":       movement.Quantity,
		"stock_after":    movement.StockAfter,
		"reference_type": movement.ReferenceType,
	})
	s.logg.Debug(logCtx, "stock movement recorded")
}

func validateAdjust(input AdjustInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock delta must not be zero")
	}
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", input.Type)
	}
	if !input.ReferenceType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid reference type %q", input.ReferenceType)
	}
	if input.Type == enums.StockMovementIn && input.Delta < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "IN movements must increase stock")
	}
	if input.Type == enums.StockMovementOut && input.Delta > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "OUT movements must decrease stock")
	}
	return nil
}

func mapProductErr(err error, productID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound(productID)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
