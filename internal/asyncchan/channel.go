// Package asyncchan adapts a push-style producer to a pull-style consumer.
//
// A Channel is an unbounded FIFO with two terminal states, closed and failed.
// Producers call Enqueue from any goroutine; a single consumer pulls with Next.
// When the consumer is parked in Next, Enqueue hands the item over directly
// instead of buffering it.
package asyncchan

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// ErrConcurrentNext is returned when a second consumer calls Next while
// another one is already waiting.
var ErrConcurrentNext = errors.New("asyncchan: concurrent Next on a channel with a waiting consumer")

type result[T any] struct {
	item T
	err  error
}

// Channel is an unbounded, ordered queue with close and fail signals.
// The zero value is not usable; call New.
type Channel[T any] struct {
	mu     sync.Mutex
	buf    []T
	waiter chan result[T]
	done   bool
	err    error
}

func New[T any]() *Channel[T] {
	return &Channel[T]{}
}

// From returns a closed channel holding items.
func From[T any](items ...T) *Channel[T] {
	c := New[T]()
	c.buf = append(c.buf, items...)
	c.done = true
	return c
}

// Enqueue appends item. It is a no-op once the channel is closed or failed.
func (c *Channel[T]) Enqueue(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}

	if c.waiter != nil {
		// buffer is empty whenever a waiter is parked
		c.waiter <- result[T]{item: item}
		c.waiter = nil
		return
	}

	c.buf = append(c.buf, item)
}

// Close marks the channel finished. Buffered items are still delivered.
func (c *Channel[T]) Close() {
	c.terminate(nil)
}

// Fail marks the channel failed with err. Only the first failure is kept.
func (c *Channel[T]) Fail(err error) {
	if err == nil {
		err = errors.New("asyncchan: channel failed")
	}
	c.terminate(err)
}

func (c *Channel[T]) terminate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return
	}
	c.done = true
	c.err = err

	if c.waiter != nil {
		c.waiter <- result[T]{err: c.terminalErr()}
		c.waiter = nil
	}
}

// terminalErr must be called with mu held.
func (c *Channel[T]) terminalErr() error {
	if c.err != nil {
		return c.err
	}
	return io.EOF
}

// Next returns the oldest item. After the buffer drains it returns io.EOF if
// the channel was closed or the failure error if it failed. Otherwise it blocks
// until an item arrives, the channel terminates, or ctx is done.
func (c *Channel[T]) Next(ctx context.Context) (T, error) {
	var zero T

	c.mu.Lock()
	if len(c.buf) > 0 {
		item := c.buf[0]
		c.buf[0] = zero
		c.buf = c.buf[1:]
		c.mu.Unlock()
		return item, nil
	}
	if c.done {
		err := c.terminalErr()
		c.mu.Unlock()
		return zero, err
	}
	if c.waiter != nil {
		c.mu.Unlock()
		return zero, ErrConcurrentNext
	}

	// buffered so a producer never blocks while holding mu
	w := make(chan result[T], 1)
	c.waiter = w
	c.mu.Unlock()

	select {
	case r := <-w:
		return r.item, r.err
	case <-ctx.Done():
		c.mu.Lock()
		if c.waiter == w {
			c.waiter = nil
			c.mu.Unlock()
			return zero, ctx.Err()
		}
		c.mu.Unlock()
		// a producer handed off concurrently with cancellation; keep the value
		r := <-w
		return r.item, r.err
	}
}

// All returns the remaining items as a sequence. Iteration ends after io.EOF;
// any other error is yielded once as the final element.
func (c *Channel[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := c.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Len reports the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Terminated reports whether Close or Fail has been called.
func (c *Channel[T]) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
