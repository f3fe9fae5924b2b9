package enums

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order.created"
	EventOrderStatusChanged   OutboxEventType = "order.status_changed"
	EventPaymentSlipSubmitted OutboxEventType = "payment.slip_submitted"
	EventPaymentConfirmed     OutboxEventType = "payment.confirmed"
	EventPaymentRejected      OutboxEventType = "payment.rejected"
	EventStockRestored        OutboxEventType = "stock.restored"
	EventShippingUpdated      OutboxEventType = "shipping.updated"
)

// OutboxAggregateType names the aggregate an event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregatePayment  OutboxAggregateType = "payment"
	AggregateShipping OutboxAggregateType = "shipping"
)
