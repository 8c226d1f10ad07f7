package pipeline

import (
	"context"
	"sync"
)

// Callback is a single-resolution result. It is resolved at most once, with
// either a value or a rejection cause. Handlers registered before resolution
// run on the resolving goroutine; handlers registered afterwards run
// immediately on the registering goroutine.
type Callback[T any] struct {
	mu         sync.Mutex
	done       chan struct{}
	resolved   bool
	value      T
	err        error
	onDone     []func(T)
	onRejected []func(error)
}

func NewCallback[T any]() *Callback[T] {
	return &Callback[T]{done: make(chan struct{})}
}

// DoWhenDone registers a handler for a successful resolution.
func (c *Callback[T]) DoWhenDone(fn func(T)) *Callback[T] {
	c.mu.Lock()
	if !c.resolved {
		c.onDone = append(c.onDone, fn)
		c.mu.Unlock()
		return c
	}
	value, err := c.value, c.err
	c.mu.Unlock()
	if err == nil {
		fn(value)
	}
	return c
}

// DoWhenRejected registers a handler for a rejection.
func (c *Callback[T]) DoWhenRejected(fn func(error)) *Callback[T] {
	c.mu.Lock()
	if !c.resolved {
		c.onRejected = append(c.onRejected, fn)
		c.mu.Unlock()
		return c
	}
	err := c.err
	c.mu.Unlock()
	if err != nil {
		fn(err)
	}
	return c
}

// SetDone resolves the callback with v. It reports false if the callback was
// already resolved.
func (c *Callback[T]) SetDone(v T) bool {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return false
	}
	c.resolved = true
	c.value = v
	handlers := c.onDone
	c.onDone, c.onRejected = nil, nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
	return true
}

// SetRejected resolves the callback with a failure. A nil err is replaced by
// a generic rejection.
func (c *Callback[T]) SetRejected(err error) bool {
	if err == nil {
		err = errRejected
	}
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return false
	}
	c.resolved = true
	c.err = err
	handlers := c.onRejected
	c.onDone, c.onRejected = nil, nil
	close(c.done)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(err)
	}
	return true
}

// Done is closed once the callback is resolved.
func (c *Callback[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until resolution or until ctx ends.
func (c *Callback[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
