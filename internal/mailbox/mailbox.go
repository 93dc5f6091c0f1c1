package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultCapacity = 256

// ErrTimeout is returned by Receive when nothing arrived within the wait bound.
var ErrTimeout = errors.New("mailbox: receive timed out")

// Box is a bounded FIFO. When full, Push evicts the oldest queued item so producers
// never block on a stalled consumer.
type Box[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	size     int
	notify   chan struct{}
	dropped  uint64
	capacity int
}

func New[T any](capacity int) *Box[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Box[T]{
		items:    make([]T, capacity),
		notify:   make(chan struct{}, 1),
		capacity: capacity,
	}
}

// Push enqueues v and reports whether an older item was evicted to make room.
func (b *Box[T]) Push(v T) (evicted bool) {
	b.mu.Lock()
	if b.size == b.capacity {
		var zero T
		b.items[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.size--
		b.dropped++
		evicted = true
	}
	b.items[(b.head+b.size)%b.capacity] = v
	b.size++
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return evicted
}

// TryPop dequeues the oldest item without waiting.
func (b *Box[T]) TryPop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % b.capacity
	b.size--
	return v, true
}

// Receive waits up to timeout for the next item. It returns ErrTimeout when the
// bound elapses and ctx.Err() when ctx is done.
func (b *Box[T]) Receive(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	if v, ok := b.TryPop(); ok {
		return v, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
			if v, ok := b.TryPop(); ok {
				return v, nil
			}
			return zero, ErrTimeout
		case <-b.notify:
			if v, ok := b.TryPop(); ok {
				return v, nil
			}
		}
	}
}

// Drain discards everything queued and returns how many items were removed.
func (b *Box[T]) Drain() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.size
	var zero T
	for i := 0; i < b.size; i++ {
		b.items[(b.head+i)%b.capacity] = zero
	}
	b.head = 0
	b.size = 0
	return n
}

func (b *Box[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped is the number of items evicted by overflow since creation.
func (b *Box[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Box[T]) Cap() int { return b.capacity }
