package optimistic

import (
	"context"
	"sync"
)

// Call is the pending outcome of a dispatched mutation.
type Call[R any] struct {
	done   chan struct{}
	once   sync.Once
	result R
	err    error
}

func newCall[R any]() *Call[R] {
	return &Call[R]{done: make(chan struct{})}
}

// Deferred returns a call that completes when complete is invoked. Only the
// first completion counts.
func Deferred[R any]() (call *Call[R], complete func(R, error)) {
	c := newCall[R]()
	return c, c.complete
}

// Completed returns a call that has already finished.
func Completed[R any](result R, err error) *Call[R] {
	c := newCall[R]()
	c.complete(result, err)
	return c
}

func (c *Call[R]) complete(result R, err error) {
	c.once.Do(func() {
		c.result, c.err = result, err
		close(c.done)
	})
}

// Done is closed once the outcome is known.
func (c *Call[R]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call finishes.
func (c *Call[R]) Wait() (R, error) {
	<-c.done
	return c.result, c.err
}

// WaitContext blocks until the call finishes or ctx is done. Giving up on the
// wait does not cancel the remote call.
func (c *Call[R]) WaitContext(ctx context.Context) (R, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
