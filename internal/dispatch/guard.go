package dispatch

import "sync/atomic"

// Guard is a one-shot latch scoped to a single playback request.
type Guard struct {
	latched atomic.Bool
}

// TryLatch returns true exactly once; every later call returns false.
func (g *Guard) TryLatch() bool {
	return g.latched.CompareAndSwap(false, true)
}

func (g *Guard) Latched() bool {
	return g.latched.Load()
}
