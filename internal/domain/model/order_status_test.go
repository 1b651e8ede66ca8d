package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_ForwardFlow(t *testing.T) {
	s := OrderStatusPending
	var seen []OrderStatus
	for {
		next, ok := s.Next()
		if !ok {
			break
		}
		assert.True(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		seen = append(seen, next)
		s = next
	}
	assert.Equal(t, []OrderStatus{OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered}, seen)
}

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusCancellationRequested, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancellationRequested, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusReturnRequested, true},
		{OrderStatusDelivered, OrderStatusExchangeRequested, true},
		{OrderStatusConfirmed, OrderStatusReturnRequested, false},
		{OrderStatusCancellationRequested, OrderStatusConfirmed, true},
		{OrderStatusCancellationRequested, OrderStatusShipped, false},
		{OrderStatusReturnRequested, OrderStatusDelivered, true},
		{OrderStatusExchangeRequested, OrderStatusExchanged, true},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusReturned, OrderStatusDelivered, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_Classification(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCancelled, OrderStatusReturned, OrderStatusExchanged} {
		assert.True(t, s.IsTerminal(), s)
		_, ok := s.Next()
		assert.False(t, ok, s)
	}
	for _, s := range []OrderStatus{OrderStatusCancellationRequested, OrderStatusReturnRequested, OrderStatusExchangeRequested} {
		assert.True(t, s.IsRequest(), s)
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, OrderStatusDelivered.IsTerminal())
	assert.False(t, OrderStatus("LOST").Valid())
	assert.False(t, OrderStatus("LOST").IsTerminal())
}
