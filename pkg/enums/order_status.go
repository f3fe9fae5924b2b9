package enums

import "fmt"

// OrderStatus is the top-level lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusWaitingConfirm OrderStatus = "WAITING_CONFIRM"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusShipping       OrderStatus = "SHIPPING"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusWaitingConfirm,
	OrderStatusPaid,
	OrderStatusShipping,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// orderStatusTransitions is the only place order edges are defined.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusWaitingConfirm, OrderStatusCancelled},
	OrderStatusWaitingConfirm: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:       {OrderStatusCompleted},
	OrderStatusCompleted:      nil,
	OrderStatusCancelled:      nil,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderStatusTransitions[s]) == 0
}

// ShippingDriven reports whether the status is reached only through the
// shipping record (SHIPPED and DELIVERED cascades).
func (s OrderStatus) ShippingDriven() bool {
	return s == OrderStatusShipping || s == OrderStatusCompleted
}

// CanTransitionTo reports whether next is a permitted edge from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
