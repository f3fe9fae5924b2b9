package enums

import "fmt"

// PaymentStatus tracks manual review of a payment slip.
type PaymentStatus string

const (
	PaymentStatusWaiting   PaymentStatus = "WAITING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusWaiting,
	PaymentStatusConfirmed,
	PaymentStatusRejected,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentAction is the reviewer's decision on a waiting payment.
type PaymentAction string

const (
	PaymentActionConfirm PaymentAction = "confirm"
	PaymentActionReject  PaymentAction = "reject"
)

// IsValid reports whether the value is a known PaymentAction.
func (a PaymentAction) IsValid() bool {
	return a == PaymentActionConfirm || a == PaymentActionReject
}
