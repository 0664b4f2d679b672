package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusServed, true},
		{StatusPending, StatusPreparing, false},
		{StatusConfirmed, StatusReady, false},
		{StatusServed, StatusReady, false},
		{StatusReady, StatusConfirmed, false},
		{StatusPaid, StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusMerged.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusServed.Terminal())
}

func TestStatusCancellable(t *testing.T) {
	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusConfirmed.Cancellable())
	assert.True(t, StatusPreparing.Cancellable())
	assert.True(t, StatusReady.Cancellable())
	assert.False(t, StatusServed.Cancellable())
	assert.False(t, StatusPaid.Cancellable())
	assert.False(t, StatusMerged.Cancellable())
}
