package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrOverflow is returned by Send when the mailbox is at capacity.
	ErrOverflow = errors.New("maestro: mailbox is full")

	// ErrClosed is returned by Send after Close, and by receives once the
	// remaining items have been drained.
	ErrClosed = errors.New("maestro: mailbox is closed")

	// ErrTimeout is returned by ReceiveTimeout when no item arrived in time.
	ErrTimeout = errors.New("maestro: mailbox receive timed out")
)

// Mailbox is a bounded FIFO queue connecting the supervisor to one worker.
// Sends never block: a full mailbox reports overflow instead of applying
// backpressure, so a stalled consumer cannot wedge its producers.
type Mailbox[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	closed bool
}

// New returns a mailbox holding at most capacity items.
func New[T any](capacity int) *Mailbox[T] {
	if capacity < 1 {
		panic("maestro: mailbox capacity must be at least 1")
	}
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// Send enqueues v without blocking. It returns ErrOverflow when the mailbox
// is at capacity and ErrClosed after Close.
func (m *Mailbox[T]) Send(v T) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	select {
	case m.ch <- v:
		return nil
	default:
		return ErrOverflow
	}
}

// Receive blocks until an item is available, the context is done, or the
// mailbox is closed and drained.
func (m *Mailbox[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-m.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// ReceiveTimeout waits up to timeout for an item. A non-positive timeout
// polls without waiting.
func (m *Mailbox[T]) ReceiveTimeout(timeout time.Duration) (T, error) {
	var zero T

	if timeout <= 0 {
		select {
		case v, ok := <-m.ch:
			if !ok {
				return zero, ErrClosed
			}
			return v, nil
		default:
			return zero, ErrTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v, ok := <-m.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-timer.C:
		return zero, ErrTimeout
	}
}

// TryReceive pops the next item if one is buffered.
func (m *Mailbox[T]) TryReceive() (T, bool) {
	var zero T
	select {
	case v, ok := <-m.ch:
		if !ok {
			return zero, false
		}
		return v, true
	default:
		return zero, false
	}
}

// Len reports the number of buffered items.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

// Cap reports the mailbox capacity.
func (m *Mailbox[T]) Cap() int {
	return cap(m.ch)
}

// Close rejects further sends. Buffered items remain receivable; once they
// are drained, receives report ErrClosed. Close is idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
