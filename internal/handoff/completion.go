package handoff

import "sync"

// Completion is a single-resolution signal: the first Resolve or Reject wins
// and later calls are ignored.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve settles the completion successfully. It reports whether this call settled it.
func (c *Completion) Resolve() bool {
	return c.settle(nil)
}

// Reject settles the completion with err. A nil err is replaced by ErrRejected.
func (c *Completion) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	return c.settle(err)
}

func (c *Completion) settle(err error) bool {
	settled := false
	c.once.Do(func() {
		c.err = err
		settled = true
		close(c.done)
	})
	return settled
}

func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the rejection cause once Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
