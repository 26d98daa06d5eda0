package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanApply(t *testing.T) {
	tests := []struct {
		action Action
		from   Status
		want   bool
	}{
		{ActionPay, StatusAwaitingPayment, true},
		{ActionPay, StatusPaid, false},
		{ActionPay, StatusCancelled, false},
		{ActionPay, StatusReturned, false},
		{ActionCancel, StatusAwaitingPayment, true},
		{ActionCancel, StatusPaid, false},
		{ActionReturn, StatusPaid, true},
		{ActionReturn, StatusAwaitingPayment, false},
		{ActionReturn, StatusCancelled, false},
		{Action("ship"), StatusAwaitingPayment, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanApply(tt.action, tt.from),
			"%s from %s", tt.action, tt.from)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusAwaitingPayment, StatusPaid, StatusReturned, StatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("SHIPPED").Valid())
	assert.False(t, Status("").Valid())
}

func TestRestockDirectionPerAction(t *testing.T) {
	assert.False(t, transitions[ActionPay].Restock)
	assert.True(t, transitions[ActionCancel].Restock)
	assert.True(t, transitions[ActionReturn].Restock)
}
