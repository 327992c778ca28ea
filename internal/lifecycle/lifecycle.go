// Package lifecycle ties process shutdown to termination signals.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"time"
)

// DefaultShutdownTimeout bounds how long shutdown waits for collaborators.
const DefaultShutdownTimeout = 5 * time.Second

// SignalContext returns a context cancelled by the first termination signal.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, TerminationSignals()...)
}

// ShutdownContext detaches from ctx and bounds the remaining cleanup.
func ShutdownContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// IsTermination reports whether sig asks the process to stop.
func IsTermination(sig os.Signal) bool {
	for _, s := range TerminationSignals() {
		if s == sig {
			return true
		}
	}
	return false
}
