package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks buffer performance counters.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Write records a buffer write operation.
func (s *Statistics) Write() {
	s.writes.Add(1)
}

// Read records a buffer read operation.
func (s *Statistics) Read() {
	s.reads.Add(1)
}

// Overflow records a buffer overflow event.
func (s *Statistics) Overflow() {
	s.overflows.Add(1)
}

// Drop records an item drop due to overflow policy.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// UpdateSize updates the current buffer size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Writes returns the total number of write operations.
func (s *Statistics) Writes() int64 {
	return s.writes.Load()
}

// Reads returns the total number of read operations.
func (s *Statistics) Reads() int64 {
	return s.reads.Load()
}

// Overflows returns the total number of overflow events.
func (s *Statistics) Overflows() int64 {
	return s.overflows.Load()
}

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 {
	return s.drops.Load()
}

// CurrentSize returns the current number of items in the buffer.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of items the buffer has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// DropRate returns the fraction of writes that resulted in drops (0.0 to 1.0).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	drops := s.Drops()

	if writes == 0 {
		return 0.0
	}

	return float64(drops) / float64(writes)
}

// Uptime returns how long the buffer has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}
