package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Service exposes order reads and the administrative status override.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*Detail, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*Detail, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Viewer is the authenticated caller reading an order.
type Viewer struct {
	CustomerID uuid.UUID
	Role       enums.Role
}

func (v Viewer) IsAdmin() bool {
	return v.Role == enums.RoleAdmin
}

// Detail is an order with its items, payment and shipping records.
type Detail struct {
	Order    models.Order
	Payment  *models.Payment
	Shipping *models.Shipping
}

// UpdateStatusInput is the admin override. PaymentVerified with Status PAID
// also confirms a payment that is still waiting.
type UpdateStatusInput struct {
	OrderID         uuid.UUID
	Status          enums.OrderStatus
	PaymentVerified bool
	VerifiedAt      *time.Time
	Actor           *outbox.ActorRef
}

type service struct {
	repo        Repository
	tx          txRunner
	transitions Transitioner
	outbox      outbox.Emitter
	metrics     *metrics.Lifecycle
	logg        *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, transitions Transitioner, emitter outbox.Emitter, lifecycle *metrics.Lifecycle, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        repo,
		tx:          tx,
		transitions: transitions,
		outbox:      emitter,
		metrics:     lifecycle,
		logg:        logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*Detail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	detail, err := LoadDetail(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && detail.Order.CustomerID != viewer.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return detail, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*Detail, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", input.Status)
	}
	if input.Status.ShippingDriven() {
		return nil, ErrShippingDrivenStatus(input.Status)
	}

	var (
		detail *Detail
		from   enums.OrderStatus
		moved  bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapOrderErr(err, input.OrderID)
		}
		from = order.Status

		// cancelling a cancelled order must not restore stock twice
		if !(order.Status == enums.OrderStatusCancelled && input.Status == enums.OrderStatusCancelled) {
			if _, err := s.transitions.Transition(ctx, tx, TransitionInput{
				OrderID: input.OrderID,
				To:      input.Status,
				Actor:   input.Actor,
			}); err != nil {
				return err
			}
			moved = true
		}

		switch {
		case input.Status == enums.OrderStatusCancelled:
			// a cancelled order can no longer be paid for
			if err := s.resolveWaitingPayment(ctx, tx, repo, input, enums.PaymentStatusRejected); err != nil {
				return err
			}
		case input.Status == enums.OrderStatusPaid && input.PaymentVerified:
			if err := s.resolveWaitingPayment(ctx, tx, repo, input, enums.PaymentStatusConfirmed); err != nil {
				return err
			}
		}

		detail, err = LoadDetail(ctx, repo, input.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, input.OrderID.String()), map[string]any{
		"from":    from,
		"to":      input.Status,
		"changed": moved,
	})
	s.logg.Info(logCtx, "order.status_updated")
	return detail, nil
}

// resolveWaitingPayment settles the order's payment if it is still WAITING.
// Confirmation is stamped with VerifiedAt when the admin supplied one.
func (s *service) resolveWaitingPayment(ctx context.Context, tx *gorm.DB, repo Repository, input UpdateStatusInput, to enums.PaymentStatus) error {
	payment, err := repo.FindPayment(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusWaiting {
		return nil
	}

	at := time.Now().UTC()
	eventType := enums.EventPaymentRejected
	action := enums.PaymentActionReject
	if to == enums.PaymentStatusConfirmed {
		eventType = enums.EventPaymentConfirmed
		action = enums.PaymentActionConfirm
		if input.VerifiedAt != nil && !input.VerifiedAt.IsZero() {
			at = input.VerifiedAt.UTC()
		}
	}
	ok, err := repo.ResolvePayment(ctx, payment.ID, to, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment")
	}
	if !ok {
		return nil
	}

	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         input.Actor,
		Data: payloads.PaymentDecisionEvent{
			PaymentID: payment.ID,
			OrderID:   input.OrderID,
			Status:    to,
			DecidedAt: at,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
	}
	s.metrics.IncPaymentDecision(string(action))
	return nil
}

// LoadDetail assembles the order aggregate with sequential reads on repo.
func LoadDetail(ctx context.Context, repo Repository, orderID uuid.UUID) (*Detail, error) {
	order, err := repo.FindWithItems(ctx, orderID)
	if err != nil {
		return nil, mapOrderErr(err, orderID)
	}
	detail := &Detail{Order: *order}

	payment, err := repo.FindPayment(ctx, orderID)
	switch {
	case err == nil:
		detail.Payment = payment
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	shipping, err := repo.FindShipping(ctx, orderID)
	switch {
	case err == nil:
		detail.Shipping = shipping
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping")
	}
	return detail, nil
}
