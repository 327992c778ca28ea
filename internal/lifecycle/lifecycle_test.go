package lifecycle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownContextOutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	ctx, stop := ShutdownContext(parent, time.Second)
	defer stop()

	require.NoError(t, ctx.Err())
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
}

func TestShutdownContextDefaultTimeout(t *testing.T) {
	ctx, stop := ShutdownContext(context.Background(), 0)
	defer stop()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultShutdownTimeout), deadline, time.Second)
}

func TestSignalContextCancelsWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SignalContext(parent)
	defer stop()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("signal context did not follow parent")
	}
}

func TestIsTermination(t *testing.T) {
	assert.True(t, IsTermination(os.Interrupt))
	assert.False(t, IsTermination(os.Kill))
}
