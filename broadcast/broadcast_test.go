package broadcast_test

import (
	"testing"

	"github.com/gradcert/console-client/broadcast"
	"github.com/stretchr/testify/require"
)

func TestTriggerWithoutHandlerIsNoOp(t *testing.T) {
	b := broadcast.New()
	require.NotPanics(t, b.Trigger)
}

func TestTriggerInvokesHandler(t *testing.T) {
	b := broadcast.New()
	calls := 0
	b.Register(func() { calls++ })

	b.Trigger()
	b.Trigger()
	require.Equal(t, 2, calls)
}

func TestRegisterOverwritesPreviousHandler(t *testing.T) {
	b := broadcast.New()
	var first, second int
	b.Register(func() { first++ })
	b.Register(func() { second++ })

	b.Trigger()
	require.Zero(t, first)
	require.Equal(t, 1, second)
}

func TestClearRemovesHandler(t *testing.T) {
	b := broadcast.New()
	calls := 0
	b.Register(func() { calls++ })
	b.Clear()

	require.NotPanics(t, b.Trigger)
	require.Zero(t, calls)
}
