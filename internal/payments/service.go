package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

const defaultMaxSlipBytes = 10 << 20

var allowedSlipTypes = []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}

// Service is the payment verification state machine. WAITING moves once to
// CONFIRMED or REJECTED and the order follows in the same transaction.
type Service interface {
	Confirm(ctx context.Context, input ConfirmInput) (*Result, error)
	SubmitSlip(ctx context.Context, input SlipInput) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ConfirmInput is the reviewer decision on a waiting payment.
type ConfirmInput struct {
	PaymentID uuid.UUID
	Action    enums.PaymentAction
	Actor     *outbox.ActorRef
}

// SlipInput carries a transfer slip uploaded by the order's customer.
type SlipInput struct {
	PaymentID  uuid.UUID
	CustomerID uuid.UUID
	Body       io.Reader
	Actor      *outbox.ActorRef
}

// Result is the payment and its order after the operation.
type Result struct {
	Payment  models.Payment
	Order    models.Order
	Restored []payloads.RestoredItem
}

type service struct {
	repo         Repository
	orders       orders.Repository
	tx           txRunner
	transitions  orders.Transitioner
	files        storage.FileStore
	outbox       outbox.Emitter
	metrics      *metrics.Lifecycle
	logg         *logger.Logger
	maxSlipBytes int64
	now          func() time.Time
}

// NewService wires payment verification. maxSlipBytes <= 0 falls back to 10MB.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	transitions orders.Transitioner,
	files storage.FileStore,
	emitter outbox.Emitter,
	lifecycle *metrics.Lifecycle,
	logg *logger.Logger,
	maxSlipBytes int64,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
	if files == nil {
		return nil, fmt.Errorf("file store required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if maxSlipBytes <= 0 {
		maxSlipBytes = defaultMaxSlipBytes
	}
	return &service{
		repo:         repo,
		orders:       ordersRepo,
		tx:           tx,
		transitions:  transitions,
		files:        files,
		outbox:       emitter,
		metrics:      lifecycle,
		logg:         logg,
		maxSlipBytes: maxSlipBytes,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*Result, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "action must be %q or %q", enums.PaymentActionConfirm, enums.PaymentActionReject)
	}

	paymentStatus := enums.PaymentStatusConfirmed
	orderStatus := enums.OrderStatusPaid
	eventType := enums.EventPaymentConfirmed
	if input.Action == enums.PaymentActionReject {
		paymentStatus = enums.PaymentStatusRejected
		orderStatus = enums.OrderStatusCancelled
		eventType = enums.EventPaymentRejected
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.loadWaiting(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}

		at := s.now()
		ok, err := repo.Resolve(ctx, payment.ID, paymentStatus, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if !ok {
			return s.notWaiting(ctx, repo, payment.ID)
		}
		payment.Status = paymentStatus
		if paymentStatus == enums.PaymentStatusConfirmed {
			payment.ConfirmedAt = &at
		} else {
			payment.RejectedAt = &at
		}

		order, err := s.orders.WithTx(tx).FindWithItems(ctx, payment.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.ErrOrderNotFound(payment.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		// an order cancelled elsewhere already had its stock restored; only the
		// payment is left to settle
		moved := &orders.TransitionResult{Order: *order, From: order.Status}
		if !(orderStatus == enums.OrderStatusCancelled && order.Status == enums.OrderStatusCancelled) {
			moved, err = s.transitions.Transition(ctx, tx, orders.TransitionInput{
				OrderID: payment.OrderID,
				To:      orderStatus,
				Actor:   input.Actor,
			})
			if err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         input.Actor,
			Data: payloads.PaymentDecisionEvent{
				PaymentID: payment.ID,
				OrderID:   payment.OrderID,
				Status:    paymentStatus,
				DecidedAt: at,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
		}

		result = &Result{Payment: *payment, Order: moved.Order, Restored: moved.Restored}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentDecision(string(input.Action))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":     input.PaymentID.String(),
		"order_id":       result.Order.ID.String(),
		"restored_items": len(result.Restored),
		"order_status":   result.Order.Status,
		"payment_status": result.Payment.Status,
	})
	s.logg.Info(logCtx, string(eventType))
	return result, nil
}

func (s *service) SubmitSlip(ctx context.Context, input SlipInput) (*Result, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slip file is required")
	}

	data, mtype, err := s.readSlip(input.Body)
	if err != nil {
		return nil, err
	}

	// ownership and state are checked before the upload so a doomed request
	// never writes a file
	payment, err := s.loadWaiting(ctx, s.repo, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOwner(ctx, s.orders, payment.OrderID, input.CustomerID); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("slips/%s/%s%s", payment.ID, uuid.NewString(), mtype.Extension())
	slipURL, err := s.files.Store(ctx, name, mtype.String(), bytes.NewReader(data))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment slip")
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		payment, err := s.loadWaiting(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}
		ok, err := repo.AttachSlip(ctx, payment.ID, slipURL)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment slip")
		}
		if !ok {
			return s.notWaiting(ctx, repo, payment.ID)
		}
		payment.SlipURL = &slipURL

		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		switch order.Status {
		case enums.OrderStatusPendingPayment:
			moved, err := s.transitions.Transition(ctx, tx, orders.TransitionInput{
				OrderID: order.ID,
				To:      enums.OrderStatusWaitingConfirm,
				Actor:   input.Actor,
			})
			if err != nil {
				return err
			}
			order = &moved.Order
		case enums.OrderStatusWaitingConfirm:
			// re-upload only replaces the slip
		default:
			return orders.ErrInvalidTransition(order.Status, enums.OrderStatusWaitingConfirm)
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentSlipSubmitted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         input.Actor,
			Data: payloads.PaymentSlipSubmittedEvent{
				PaymentID: payment.ID,
				OrderID:   order.ID,
				SlipURL:   slipURL,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment event")
		}
		result = &Result{Payment: *payment, Order: *order}
		return nil
	})
	if err != nil {
		logCtx := s.logg.WithField(ctx, "slip_url", slipURL)
		s.logg.Warn(logCtx, "payment slip stored but not attached")
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":   input.PaymentID.String(),
		"order_id":     result.Order.ID.String(),
		"content_type": mtype.String(),
		"size":         len(data),
	})
	s.logg.Info(logCtx, "payment.slip_submitted")
	return result, nil
}

func (s *service) readSlip(body io.Reader) ([]byte, *mimetype.MIME, error) {
	data, err := io.ReadAll(io.LimitReader(body, s.maxSlipBytes+1))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read slip file")
	}
	if len(data) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "slip file is empty")
	}
	if int64(len(data)) > s.maxSlipBytes {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "slip file exceeds %d bytes", s.maxSlipBytes)
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedSlipTypes...) {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported slip type %s", mtype.String()).
			WithDetails(map[string]any{"allowed": allowedSlipTypes})
	}
	return data, mtype, nil
}

func (s *service) loadWaiting(ctx context.Context, repo Repository, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound(paymentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusWaiting {
		return nil, ErrPaymentNotWaiting(payment.ID, payment.Status)
	}
	return payment, nil
}

// notWaiting explains a lost compare-and-swap with the status that won.
func (s *service) notWaiting(ctx context.Context, repo Repository, paymentID uuid.UUID) error {
	current, err := repo.FindByID(ctx, paymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return ErrPaymentNotWaiting(paymentID, current.Status)
}

func (s *service) ensureOwner(ctx context.Context, repo orders.Repository, orderID, customerID uuid.UUID) error {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orders.ErrOrderNotFound(orderID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to customer")
	}
	return nil
}
