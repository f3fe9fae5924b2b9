package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promotions"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Adjust(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*inventory.AdjustResult, error)
}

type shippingInfoWriter interface {
	SaveShippingInfo(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, info types.ShippingInfo) error
}

// Service converts a customer's cart into an order.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// Input is one checkout request.
type Input struct {
	CustomerID   uuid.UUID
	ShippingInfo types.ShippingInfo
	Actor        *outbox.ActorRef
}

// Result identifies the records created by a checkout.
type Result struct {
	OrderID     uuid.UUID
	PaymentID   uuid.UUID
	ShippingID  uuid.UUID
	TotalAmount decimal.Decimal
	Order       models.Order
}

// Repositories groups the persistence the checkout transaction writes through.
type Repositories struct {
	Carts    cart.CartRepository
	Products inventory.Repository
	Orders   orders.Repository
	Payments payments.Repository
	Shipping shipping.Repository
}

type service struct {
	tx        txRunner
	repos     Repositories
	pricer    promotions.Pricer
	ledger    stockLedger
	customers shippingInfoWriter
	outbox    outbox.Emitter
	metrics   *metrics.Lifecycle
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	repos Repositories,
	pricer promotions.Pricer,
	ledger stockLedger,
	customers shippingInfoWriter,
	publisher outbox.Emitter,
	lifecycle *metrics.Lifecycle,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repos.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if repos.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if repos.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if repos.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if repos.Shipping == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        tx,
		repos:     repos,
		pricer:    pricer,
		ledger:    ledger,
		customers: customers,
		outbox:    publisher,
		metrics:   lifecycle,
		logg:      logg,
	}, nil
}

// Checkout runs as one transaction: any failure leaves stock, cart and orders
// exactly as they were.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	start := time.Now()
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.checkout(ctx, tx, input)
		return err
	})
	s.metrics.ObserveCheckout(outcomeOf(err), time.Since(start))
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"customer_id": input.CustomerID.String(),
			"outcome":     outcomeOf(err),
		})
		s.logg.Warn(logCtx, "checkout.failed")
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"customer_id":  input.CustomerID.String(),
		"order_id":     result.OrderID.String(),
		"payment_id":   result.PaymentID.String(),
		"total_amount": result.TotalAmount.StringFixed(2),
		"items":        len(result.Order.Items),
	})
	s.logg.Info(logCtx, "checkout.completed")
	return result, nil
}

func (s *service) checkout(ctx context.Context, tx *gorm.DB, input Input) (*Result, error) {
	carts := s.repos.Carts.WithTx(tx)
	products := s.repos.Products.WithTx(tx)

	record, err := carts.FindByCustomer(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmptyCart(input.CustomerID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	items, err := carts.ListItems(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart(input.CustomerID)
	}

	lines := make([]models.Product, 0, len(items))
	for _, item := range items {
		product, err := products.FindProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, inventory.ErrProductUnavailable(item.ProductID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.IsDeleted() {
			return nil, inventory.ErrProductUnavailable(product.ID)
		}
		if product.Stock < item.Quantity {
			return nil, inventory.ErrInsufficientStock(product.ID, product.Stock, item.Quantity)
		}
		lines = append(lines, *product)
	}

	prices, err := s.pricer.WithTx(tx).Prices(ctx, lines)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID:   input.CustomerID,
		Status:       enums.OrderStatusPendingPayment,
		ShippingInfo: input.ShippingInfo.Normalize(),
		Items:        make([]models.OrderItem, 0, len(items)),
	}
	total := decimal.Zero
	for i, item := range items {
		price, ok := prices[item.ProductID]
		if !ok {
			price = promotions.Apply(lines[i], nil)
		}
		line := models.OrderItem{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPrice:         price.Effective,
			OriginalUnitPrice: price.Original,
			DiscountPercent:   price.DiscountPercent,
		}
		order.Items = append(order.Items, line)
		total = total.Add(line.LineTotal())
	}
	order.TotalAmount = total.Round(2)

	if err := s.repos.Orders.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	orderID := order.ID
	for _, item := range order.Items {
		if _, err := s.ledger.Adjust(ctx, tx, inventory.AdjustInput{
			ProductID:     item.ProductID,
			Delta:         -item.Quantity,
			Type:          enums.StockMovementOut,
			ReferenceType: enums.StockReferenceSale,
			ReferenceID:   &orderID,
		}); err != nil {
			return nil, err
		}
	}

	payment := &models.Payment{
		OrderID: order.ID,
		Status:  enums.PaymentStatusWaiting,
		Amount:  order.TotalAmount,
	}
	if err := s.repos.Payments.WithTx(tx).Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	shipment := &models.Shipping{
		OrderID: order.ID,
		Status:  enums.ShippingStatusPreparing,
	}
	if err := s.repos.Shipping.WithTx(tx).Create(ctx, shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping")
	}

	if err := s.customers.SaveShippingInfo(ctx, tx, input.CustomerID, order.ShippingInfo); err != nil {
		return nil, err
	}
	if _, err := carts.ClearItems(ctx, record.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         input.Actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			PaymentID:   payment.ID,
			ShippingID:  shipment.ID,
			TotalAmount: order.TotalAmount,
			ItemCount:   len(order.Items),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}

	return &Result{
		OrderID:     order.ID,
		PaymentID:   payment.ID,
		ShippingID:  shipment.ID,
		TotalAmount: order.TotalAmount,
		Order:       *order,
	}, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if typed := pkgerrors.As(err); typed != nil {
		if reason := typed.Reason(); reason != "" {
			return strings.ToLower(string(reason))
		}
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
