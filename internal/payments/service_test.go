package payments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var pngSlip = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

type stubFileStore struct {
	calls []string
	err   error
}

func (s *stubFileStore) Store(_ context.Context, name, contentType string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	s.calls = append(s.calls, contentType)
	return "/uploads/" + name, nil
}

type paymentsFixture struct {
	client      *db.Client
	ledger      inventory.Service
	orders      orders.Repository
	transitions orders.Transitioner
	repo        Repository
	outbox      *outbox.Repository
	files       *stubFileStore
	svc         Service
	product     models.Product
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()
	conn, client := dbtest.Open(t)
	ledger, err := inventory.NewService(inventory.NewRepository(conn), client, nil, nil)
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, nil)
	ordersRepo := orders.NewRepository(conn)
	transitions, err := orders.NewTransitioner(ordersRepo, ledger, emitter, nil)
	require.NoError(t, err)

	f := &paymentsFixture{
		client:      client,
		ledger:      ledger,
		orders:      ordersRepo,
		transitions: transitions,
		repo:        NewRepository(conn),
		outbox:      outboxRepo,
		files:       &stubFileStore{},
	}
	f.svc, err = NewService(f.repo, ordersRepo, client, transitions, f.files, emitter, nil, nil, 1024)
	require.NoError(t, err)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		res, err := ledger.Receive(context.Background(), tx, inventory.ReceiveInput{
			Name:         "Product A",
			Price:        decimal.NewFromInt(100),
			InitialStock: 5,
		})
		if err != nil {
			return err
		}
		f.product = res.Product
		return nil
	}))
	return f
}

// seed places an order for two units, decrements stock and opens a waiting payment.
func (f *paymentsFixture) seed(t *testing.T, status enums.OrderStatus) (models.Order, models.Payment) {
	t.Helper()
	ctx := context.Background()
	order := models.Order{
		CustomerID:  uuid.New(),
		Status:      status,
		TotalAmount: decimal.NewFromInt(180),
		Items: []models.OrderItem{{
			ProductID:         f.product.ID,
			Quantity:          2,
			UnitPrice:         decimal.NewFromInt(90),
			OriginalUnitPrice: decimal.NewFromInt(100),
			DiscountPercent:   decimal.NewFromInt(10),
		}},
	}
	payment := models.Payment{Status: enums.PaymentStatusWaiting, Amount: order.TotalAmount}
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := f.orders.WithTx(tx).Create(ctx, &order); err != nil {
			return err
		}
		orderID := order.ID
		if _, err := f.ledger.Adjust(ctx, tx, inventory.AdjustInput{
			ProductID:     f.product.ID,
			Delta:         -2,
			Type:          enums.StockMovementOut,
			ReferenceType: enums.StockReferenceSale,
			ReferenceID:   &orderID,
		}); err != nil {
			return err
		}
		payment.OrderID = order.ID
		return f.repo.WithTx(tx).Create(ctx, &payment)
	}))
	return order, payment
}

func (f *paymentsFixture) stock(t *testing.T) int {
	t.Helper()
	stock, err := f.ledger.CurrentStock(context.Background(), f.product.ID)
	require.NoError(t, err)
	return stock
}

func TestRejectRestoresStock(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)
	require.Equal(t, 3, f.stock(t))

	res, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, res.Payment.Status)
	assert.NotNil(t, res.Payment.RejectedAt)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
	require.Len(t, res.Restored, 1)
	assert.Equal(t, 2, res.Restored[0].Quantity)
	assert.Equal(t, 5, f.stock(t))

	history, err := f.ledger.History(ctx, f.product.ID)
	require.NoError(t, err)
	last := history.Movements[len(history.Movements)-1]
	assert.Equal(t, enums.StockMovementIn, last.Type)
	assert.Equal(t, enums.StockReferenceReturn, last.ReferenceType)
	assert.Equal(t, 2, last.Quantity)
	assert.Equal(t, order.ID, *last.ReferenceID)
	assert.True(t, history.Consistent())
}

func TestRejectFromPendingPayment(t *testing.T) {
	f := newPaymentsFixture(t)
	_, payment := f.seed(t, enums.OrderStatusPendingPayment)

	res, err := f.svc.Confirm(context.Background(), ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
	assert.Equal(t, 5, f.stock(t))
}

func TestSecondRejectHasNoSideEffects(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)

	_, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.NoError(t, err)
	eventsBefore, err := f.outbox.ListByAggregate(enums.AggregateOrder, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentNotWaiting))
	assert.Equal(t, 5, f.stock(t))

	eventsAfter, err := f.outbox.ListByAggregate(enums.AggregateOrder, order.ID)
	require.NoError(t, err)
	assert.Len(t, eventsAfter, len(eventsBefore))
}

func TestRejectAfterOrderCancelledSettlesPaymentOnly(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)

	// cancel the order without touching its payment
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.transitions.Transition(ctx, tx, orders.TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
		return err
	}))
	require.Equal(t, 5, f.stock(t))
	orderEvents, err := f.outbox.ListByAggregate(enums.AggregateOrder, order.ID)
	require.NoError(t, err)

	res, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, res.Payment.Status)
	assert.NotNil(t, res.Payment.RejectedAt)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
	assert.Empty(t, res.Restored)
	assert.Equal(t, 5, f.stock(t))

	after, err := f.outbox.ListByAggregate(enums.AggregateOrder, order.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(orderEvents))

	history, err := f.ledger.History(ctx, f.product.ID)
	require.NoError(t, err)
	assert.True(t, history.Consistent())
	returns := 0
	for _, m := range history.Movements {
		if m.ReferenceType == enums.StockReferenceReturn {
			returns++
		}
	}
	assert.Equal(t, 1, returns)
}

func TestConfirmAfterOrderCancelledFails(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.transitions.Transition(ctx, tx, orders.TransitionInput{OrderID: order.ID, To: enums.OrderStatusCancelled})
		return err
	}))

	_, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionConfirm})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidTransition))

	stored, err := f.repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusWaiting, stored.Status)
}

func TestDoubleConfirmFailsWithStateConflict(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)

	res, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionConfirm})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusConfirmed, res.Payment.Status)
	assert.NotNil(t, res.Payment.ConfirmedAt)
	assert.Equal(t, enums.OrderStatusPaid, res.Order.Status)
	assert.Empty(t, res.Restored)

	_, err = f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionConfirm})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentNotWaiting))

	// a late reject of a confirmed payment must not cancel or restore
	_, err = f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionReject})
	require.Error(t, err)

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	assert.Equal(t, 3, f.stock(t))

	events, err := f.outbox.ListByAggregate(enums.AggregatePayment, payment.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPaymentConfirmed, events[0].EventType)
}

func TestConfirmRequiresSlipReview(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	_, payment := f.seed(t, enums.OrderStatusPendingPayment)

	_, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionConfirm})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidTransition))

	stored, err := f.repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusWaiting, stored.Status)
	assert.Nil(t, stored.ConfirmedAt)
}

func TestConfirmValidation(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: uuid.New(), Action: "approve"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Confirm(ctx, ConfirmInput{PaymentID: uuid.New(), Action: enums.PaymentActionConfirm})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentNotFound))
}

func TestSubmitSlipMovesOrderToWaitingConfirm(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusPendingPayment)

	res, err := f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: bytes.NewReader(pngSlip)})
	require.NoError(t, err)
	require.NotNil(t, res.Payment.SlipURL)
	first := *res.Payment.SlipURL
	assert.True(t, strings.HasPrefix(first, "/uploads/slips/"+payment.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Equal(t, enums.OrderStatusWaitingConfirm, res.Order.Status)
	assert.Equal(t, []string{"image/png"}, f.files.calls)

	res, err = f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: bytes.NewReader(pngSlip)})
	require.NoError(t, err)
	assert.NotEqual(t, first, *res.Payment.SlipURL)
	assert.Equal(t, enums.OrderStatusWaitingConfirm, res.Order.Status)

	stored, err := f.repo.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, *res.Payment.SlipURL, *stored.SlipURL)
	assert.Equal(t, enums.PaymentStatusWaiting, stored.Status)
}

func TestSubmitSlipRejectsBadInput(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusPendingPayment)

	_, err := f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: strings.NewReader("plain text")})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: bytes.NewReader(make([]byte, 2048))})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: uuid.New(), Body: bytes.NewReader(pngSlip)})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	assert.Empty(t, f.files.calls)
}

func TestSubmitSlipAfterDecisionFails(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	order, payment := f.seed(t, enums.OrderStatusWaitingConfirm)

	_, err := f.svc.Confirm(ctx, ConfirmInput{PaymentID: payment.ID, Action: enums.PaymentActionConfirm})
	require.NoError(t, err)

	_, err = f.svc.SubmitSlip(ctx, SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: bytes.NewReader(pngSlip)})
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentNotWaiting))
	assert.Empty(t, f.files.calls)
}

func TestSubmitSlipStorageFailure(t *testing.T) {
	f := newPaymentsFixture(t)
	order, payment := f.seed(t, enums.OrderStatusPendingPayment)
	f.files.err = errors.New("disk full")

	_, err := f.svc.SubmitSlip(context.Background(), SlipInput{PaymentID: payment.ID, CustomerID: order.CustomerID, Body: bytes.NewReader(pngSlip)})
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))

	stored, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, stored.Status)
}
