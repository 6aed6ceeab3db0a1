// Package buffer provides a generic, thread-safe circular buffer with
// configurable overflow policies.
//
// The streaming gateway uses it for the per-connection outbound frame queue
// (frames beyond the first produced by one bus event wait here, one drained
// per actor pass) and as the bounded mailbox between bus callbacks and the
// connection actor. Statistics are always collected for observability.
package buffer

// Buffer is a generic bounded FIFO parameterized by item type T.
type Buffer[T any] interface {
	// Write adds an item to the buffer. Behavior when the buffer is full
	// depends on the configured overflow policy.
	Write(item T) error

	// Read retrieves and removes one item from the buffer.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// Peek retrieves one item without removing it.
	Peek() (T, bool)

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull returns true if the buffer is at maximum capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics (always available).
	Stats() *Statistics

	// Close shuts down the buffer. Writes after Close fail.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item dropped due to the overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the given capacity.
// Capacity is required; all other configuration is via functional options.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
