package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Service is the shipping state machine: PREPARING, SHIPPED, DELIVERED, forward only.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Result, error)
	Update(ctx context.Context, input UpdateInput) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Change lists the optional edits of one request. Nil fields are left alone.
type Change struct {
	Courier        *string
	TrackingNumber *string
	Status         *enums.ShippingStatus
}

// CreateInput opens the shipping record of a paid order.
type CreateInput struct {
	OrderID uuid.UUID
	Change
	Actor *outbox.ActorRef
}

// UpdateInput edits an existing shipping record.
type UpdateInput struct {
	ShippingID uuid.UUID
	Change
	Actor *outbox.ActorRef
}

// Result is the shipping record and the order status after the cascade.
type Result struct {
	Shipping    models.Shipping
	OrderStatus enums.OrderStatus
}

type service struct {
	repo        Repository
	orders      orders.Repository
	tx          txRunner
	transitions orders.Transitioner
	outbox      outbox.Emitter
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the shipping state machine.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, transitions orders.Transitioner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if ordersRepo == nil {
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
		orders:      ordersRepo,
		tx:          tx,
		transitions: transitions,
		outbox:      emitter,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.ErrOrderNotFound(input.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order must be %s to create shipping, is %s", enums.OrderStatusPaid, order.Status).
				WithReason(pkgerrors.ReasonInvalidTransition)
		}
		if _, err := repo.FindByOrder(ctx, order.ID); err == nil {
			return ErrShippingAlreadyExists(order.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping")
		}

		record := &models.Shipping{OrderID: order.ID, Status: enums.ShippingStatusPreparing}
		if err := repo.Create(ctx, record); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return ErrShippingAlreadyExists(order.ID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping")
		}

		result, err = s.applyChange(ctx, tx, record, input.Change, input.Actor, order.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, result, "shipping.created")
	return result, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*Result, error) {
	if input.ShippingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping id is required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repo.WithTx(tx).FindByID(ctx, input.ShippingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShippingNotFound(input.ShippingID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping")
		}
		order, err := s.orders.WithTx(tx).FindByID(ctx, record.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		result, err = s.applyChange(ctx, tx, record, input.Change, input.Actor, order.Status)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, result, "shipping.updated")
	return result, nil
}

// applyChange persists the edit and walks the order along every shipping step entered.
func (s *service) applyChange(ctx context.Context, tx *gorm.DB, record *models.Shipping, change Change, actor *outbox.ActorRef, orderStatus enums.OrderStatus) (*Result, error) {
	expected := record.Status
	entered, err := Apply(record, change, s.now())
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.WithTx(tx).Save(ctx, record, expected)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping status changed concurrently")
	}

	for _, step := range entered {
		target, cascades := orderStatusFor(step)
		if !cascades {
			continue
		}
		moved, err := s.transitions.Transition(ctx, tx, orders.TransitionInput{
			OrderID: record.OrderID,
			To:      target,
			Actor:   actor,
		})
		if err != nil {
			return nil, err
		}
		orderStatus = moved.Order.Status
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventShippingUpdated,
		AggregateType: enums.AggregateShipping,
		AggregateID:   record.ID,
		Actor:         actor,
		Data: payloads.ShippingUpdatedEvent{
			ShippingID:     record.ID,
			OrderID:        record.OrderID,
			Status:         record.Status,
			TrackingNumber: record.TrackingNumber,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipping event")
	}
	return &Result{Shipping: *record, OrderStatus: orderStatus}, nil
}

func (s *service) logResult(ctx context.Context, result *Result, msg string) {
	fields := map[string]any{
		"shipping_id":  result.Shipping.ID.String(),
		"order_id":     result.Shipping.OrderID.String(),
		"status":       result.Shipping.Status,
		"order_status": result.OrderStatus,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

// Apply edits record in place and returns the statuses it entered, in order.
// A tracking number on a PREPARING record ships it. Timestamps are stamped on
// first entry only.
func Apply(record *models.Shipping, change Change, now time.Time) ([]enums.ShippingStatus, error) {
	var entered []enums.ShippingStatus
	advance := func(next enums.ShippingStatus) error {
		if !record.Status.CanAdvanceTo(next) {
			return ErrInvalidShippingTransition(record.Status, next)
		}
		record.Status = next
		entered = append(entered, next)
		switch next {
		case enums.ShippingStatusShipped:
			if record.ShippedAt == nil {
				at := now
				record.ShippedAt = &at
			}
		case enums.ShippingStatusDelivered:
			if record.DeliveredAt == nil {
				at := now
				record.DeliveredAt = &at
			}
		}
		return nil
	}

	if change.Courier != nil {
		courier := strings.TrimSpace(*change.Courier)
		if courier == "" {
			record.Courier = nil
		} else {
			record.Courier = &courier
		}
	}
	if change.TrackingNumber != nil {
		tracking := strings.TrimSpace(*change.TrackingNumber)
		if tracking == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number must not be empty")
		}
		record.TrackingNumber = &tracking
		if record.Status == enums.ShippingStatusPreparing {
			if err := advance(enums.ShippingStatusShipped); err != nil {
				return nil, err
			}
		}
	}
	if change.Status != nil {
		target := *change.Status
		if !target.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid shipping status %q", target)
		}
		if target != record.Status {
			if err := advance(target); err != nil {
				return nil, err
			}
		}
	}
	return entered, nil
}

func orderStatusFor(step enums.ShippingStatus) (enums.OrderStatus, bool) {
	switch step {
	case enums.ShippingStatusShipped:
		return enums.OrderStatusShipping, true
	case enums.ShippingStatusDelivered:
		return enums.OrderStatusCompleted, true
	default:
		return "", false
	}
}
