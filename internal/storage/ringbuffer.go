package storage

import "sync"

// RingBuffer is a generic thread-safe ring buffer with fixed capacity.
// When full, a push overwrites the oldest item. Positions are absolute: the
// total number of items ever pushed, which lets bookmarks reference a point
// in the stream even after the buffer wraps.
type RingBuffer[T any] struct {
	sync.RWMutex
	items    []T
	capacity int
	total    int // absolute count of items pushed
}

// NewRingBuffer creates a ring buffer with the given capacity.
// Capacity must be greater than zero.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("ring buffer capacity must be greater than zero")
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push inserts an item, overwriting the oldest when at capacity.
func (rb *RingBuffer[T]) Push(item T) {
	rb.Lock()
	defer rb.Unlock()
	rb.items[rb.total%rb.capacity] = item
	rb.total++
}

// All returns every buffered item in chronological order.
// The returned slice is a copy and safe to modify.
func (rb *RingBuffer[T]) All() []T {
	rb.RLock()
	defer rb.RUnlock()
	return rb.copyRange(rb.oldest(), rb.total)
}

// Recent returns the n most recent items in chronological order.
// If n exceeds the current size, all items are returned.
func (rb *RingBuffer[T]) Recent(n int) []T {
	rb.RLock()
	defer rb.RUnlock()
	start := rb.total - n
	if oldest := rb.oldest(); start < oldest {
		start = oldest
	}
	return rb.copyRange(start, rb.total)
}

// Range returns items in the absolute position range [start, end).
// The range is clamped to what the buffer still holds; nil is returned
// when nothing in the range survives.
func (rb *RingBuffer[T]) Range(start, end int) []T {
	rb.RLock()
	defer rb.RUnlock()
	if oldest := rb.oldest(); start < oldest {
		start = oldest
	}
	if end > rb.total {
		end = rb.total
	}
	return rb.copyRange(start, end)
}

// copyRange copies absolute positions [start, end). Caller holds the lock.
func (rb *RingBuffer[T]) copyRange(start, end int) []T {
	if start >= end {
		return nil
	}
	result := make([]T, 0, end-start)
	for pos := start; pos < end; pos++ {
		result = append(result, rb.items[pos%rb.capacity])
	}
	return result
}

// oldest returns the absolute position of the oldest retained item.
// Caller holds the lock.
func (rb *RingBuffer[T]) oldest() int {
	if rb.total <= rb.capacity {
		return 0
	}
	return rb.total - rb.capacity
}

// Len returns the current number of buffered items.
func (rb *RingBuffer[T]) Len() int {
	rb.RLock()
	defer rb.RUnlock()
	if rb.total < rb.capacity {
		return rb.total
	}
	return rb.capacity
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// Position returns the absolute position of the next push.
// Bookmarks store this to mark a point in the stream.
func (rb *RingBuffer[T]) Position() int {
	rb.RLock()
	defer rb.RUnlock()
	return rb.total
}

// Clear removes all items and resets the position counter.
func (rb *RingBuffer[T]) Clear() {
	rb.Lock()
	defer rb.Unlock()
	rb.total = 0
}
