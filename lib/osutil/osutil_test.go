package osutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background())
	require.NoError(t, ctx.Err())
	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestSignalContextParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := SignalContext(parent)
	defer cancel()

	cancelParent()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
