package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Transitioner is the only writer of order status. Every move is checked
// against the transition table and applied as a compare-and-swap inside the
// caller's transaction; moving to CANCELLED returns the order's units to stock
// at most once.
type Transitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*TransitionResult, error)
}

type stockLedger interface {
	Adjust(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*inventory.AdjustResult, error)
}

// TransitionInput names the target status of an order.
type TransitionInput struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	Actor   *outbox.ActorRef
}

// TransitionResult is the order after the move. Restored lists the units put
// back on the shelf, empty unless this call performed the restoration.
type TransitionResult struct {
	Order    models.Order
	From     enums.OrderStatus
	Restored []payloads.RestoredItem
}

type transitioner struct {
	repo    Repository
	ledger  stockLedger
	outbox  outbox.Emitter
	metrics *metrics.Lifecycle
	now     func() time.Time
}

// NewTransitioner wires the order status aggregate.
func NewTransitioner(repo Repository, ledger stockLedger, emitter outbox.Emitter, lifecycle *metrics.Lifecycle) (Transitioner, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &transitioner{
		repo:    repo,
		ledger:  ledger,
		outbox:  emitter,
		metrics: lifecycle,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (t *transitioner) Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*TransitionResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.To)
	}
	repo := t.repo.WithTx(tx)

	order, err := repo.FindWithItems(ctx, input.OrderID)
	if err != nil {
		return nil, mapOrderErr(err, input.OrderID)
	}
	from := order.Status
	if !from.CanTransitionTo(input.To) {
		return nil, ErrInvalidTransition(from, input.To)
	}

	ok, err := repo.CompareAndSetStatus(ctx, order.ID, from, input.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, errStatusChanged(order.ID, from)
	}
	order.Status = input.To

	result := &TransitionResult{From: from}
	if input.To == enums.OrderStatusCancelled {
		restored, err := t.restoreStock(ctx, tx, repo, order, input.Actor)
		if err != nil {
			return nil, err
		}
		result.Restored = restored
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         input.Actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID: order.ID,
			From:    from,
			To:      input.To,
		},
	}
	if err := t.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}

	t.metrics.IncOrderTransition(string(from), string(input.To))
	result.Order = *order
	return result, nil
}

func (t *transitioner) restoreStock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, actor *outbox.ActorRef) ([]payloads.RestoredItem, error) {
	at := t.now()
	won, err := repo.MarkStockRestored(ctx, order.ID, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark stock restored")
	}
	if !won {
		return nil, nil
	}
	order.StockRestored = true
	order.StockRestoredAt = &at

	orderID := order.ID
	restored := make([]payloads.RestoredItem, 0, len(order.Items))
	for _, item := range order.Items {
		if _, err := t.ledger.Adjust(ctx, tx, inventory.AdjustInput{
			ProductID:     item.ProductID,
			Delta:         item.Quantity,
			Type:          enums.StockMovementIn,
			ReferenceType: enums.StockReferenceReturn,
			ReferenceID:   &orderID,
		}); err != nil {
			return nil, err
		}
		restored = append(restored, payloads.RestoredItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventStockRestored,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.StockRestoredEvent{
			OrderID:    order.ID,
			Items:      restored,
			RestoredAt: at,
		},
	}
	if err := t.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock restored event")
	}
	t.metrics.IncRestoration()
	return restored, nil
}

func mapOrderErr(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound(orderID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
