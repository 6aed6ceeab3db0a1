package buffer

import (
	"sync"

	"github.com/bonfire-networks/bonfire-notify/errors"
)

// circularBuffer is a thread-safe ring buffer with configurable overflow policies.
type circularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	opts     *bufferOptions[T]
	closed   bool
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	return &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		opts:     opts,
	}, nil
}

// Write adds an item to the buffer according to the overflow policy. Drop
// callbacks run after the lock is released, so they may call back into the
// buffer.
func (cb *circularBuffer[T]) Write(item T) error {
	dropped, err := cb.write(item)
	if dropped != nil && cb.opts.dropCallback != nil {
		cb.opts.dropCallback(*dropped)
	}
	return err
}

func (cb *circularBuffer[T]) write(item T) (dropped *T, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.closed {
		return nil, errors.WrapInvalid(errors.ErrShuttingDown, "Buffer", "Write", "buffer closed")
	}

	if cb.size == cb.capacity {
		switch cb.opts.overflowPolicy {
		case DropOldest:
			droppedItem := cb.items[cb.tail]
			cb.tail = (cb.tail + 1) % cb.capacity
			cb.size--

			cb.stats.Overflow()
			cb.stats.Drop()

			dropped = &droppedItem

		case DropNewest:
			cb.stats.Overflow()
			cb.stats.Drop()

			return &item, nil
		}
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++

	cb.stats.Write()
	cb.stats.UpdateSize(int64(cb.size))

	return dropped, nil
}

// Read retrieves and removes one item from the buffer.
func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T

	if cb.size == 0 {
		return zero, false
	}

	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero // clear for GC
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--

	cb.stats.Read()
	cb.stats.UpdateSize(int64(cb.size))

	return item, true
}

// Peek retrieves one item without removing it from the buffer.
func (cb *circularBuffer[T]) Peek() (T, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var zero T

	if cb.size == 0 {
		return zero, false
	}

	return cb.items[cb.tail], true
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity // immutable, no lock needed
}

// IsFull returns true if the buffer is at maximum capacity.
func (cb *circularBuffer[T]) IsFull() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == cb.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (cb *circularBuffer[T]) IsEmpty() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.size == 0
}

// Clear removes all items from the buffer. Drop callbacks run after the
// lock is released.
func (cb *circularBuffer[T]) Clear() {
	dropped := cb.clear()
	if cb.opts.dropCallback != nil {
		for _, item := range dropped {
			cb.opts.dropCallback(item)
		}
	}
}

func (cb *circularBuffer[T]) clear() []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T
	var dropped []T

	if cb.opts.dropCallback != nil && cb.size > 0 {
		dropped = make([]T, cb.size)
		for i := 0; i < cb.size; i++ {
			idx := (cb.tail + i) % cb.capacity
			dropped[i] = cb.items[idx]
		}
	}

	for i := 0; i < cb.capacity; i++ {
		cb.items[i] = zero
	}

	cb.head = 0
	cb.tail = 0
	cb.size = 0

	cb.stats.UpdateSize(0)
	return dropped
}

// Stats returns buffer statistics.
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}

// Close shuts down the buffer.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.closed = true
	return nil
}
