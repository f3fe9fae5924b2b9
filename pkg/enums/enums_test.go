package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitionTable(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPendingPayment: {OrderStatusWaitingConfirm, OrderStatusCancelled},
		OrderStatusWaitingConfirm: {OrderStatusPaid, OrderStatusCancelled},
		OrderStatusPaid:           {OrderStatusShipping, OrderStatusCancelled},
		OrderStatusShipping:       {OrderStatusCompleted},
	}

	for _, from := range validOrderStatuses {
		for _, to := range validOrderStatuses {
			expected := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					expected = true
				}
			}
			assert.Equalf(t, expected, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatus("BOGUS").IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, status)

	_, err = ParseOrderStatus("paid")
	assert.Error(t, err)
}

func TestShippingDrivenOrderStatuses(t *testing.T) {
	for _, status := range validOrderStatuses {
		want := status == OrderStatusShipping || status == OrderStatusCompleted
		assert.Equalf(t, want, status.ShippingDriven(), "%s", status)
	}
}

func TestShippingStatusForwardOnly(t *testing.T) {
	assert.True(t, ShippingStatusPreparing.CanAdvanceTo(ShippingStatusShipped))
	assert.True(t, ShippingStatusShipped.CanAdvanceTo(ShippingStatusDelivered))
	assert.False(t, ShippingStatusPreparing.CanAdvanceTo(ShippingStatusDelivered))
	assert.False(t, ShippingStatusDelivered.CanAdvanceTo(ShippingStatusShipped))
	assert.False(t, ShippingStatusShipped.CanAdvanceTo(ShippingStatusPreparing))
}

func TestStockDirectionSign(t *testing.T) {
	assert.Equal(t, 1, StockDirectionIncrease.Sign())
	assert.Equal(t, -1, StockDirectionDecrease.Sign())
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, RoleCustomer, role)

	role, ok = ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("vendor")
	assert.False(t, ok)
}
