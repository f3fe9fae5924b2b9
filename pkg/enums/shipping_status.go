package enums

import "fmt"

// ShippingStatus tracks a shipment; it only moves forward.
type ShippingStatus string

const (
	ShippingStatusPreparing ShippingStatus = "PREPARING"
	ShippingStatusShipped   ShippingStatus = "SHIPPED"
	ShippingStatusDelivered ShippingStatus = "DELIVERED"
)

var shippingStatusOrder = []ShippingStatus{
	ShippingStatusPreparing,
	ShippingStatusShipped,
	ShippingStatusDelivered,
}

// String implements fmt.Stringer.
func (s ShippingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingStatus.
func (s ShippingStatus) IsValid() bool {
	return s.rank() >= 0
}

func (s ShippingStatus) rank() int {
	for i, candidate := range shippingStatusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanAdvanceTo reports whether next is exactly one step ahead of s.
func (s ShippingStatus) CanAdvanceTo(next ShippingStatus) bool {
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

// ParseShippingStatus converts raw input into a ShippingStatus.
func ParseShippingStatus(value string) (ShippingStatus, error) {
	for _, candidate := range shippingStatusOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping status %q", value)
}
