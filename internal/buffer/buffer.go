package buffer

import (
	"sync"
)

// Ring is a thread-safe fixed-size buffer keeping the most recent items.
type Ring[T any] struct {
	mu       sync.Mutex
	data     []T
	next     int
	full     bool
	capacity int
}

// New creates a Ring holding at most capacity items. A non-positive capacity
// is treated as 1.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds an item, overwriting the oldest one once the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.next] = item
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to limit items, newest first. A non-positive limit
// returns everything.
func (r *Ring[T]) Recent(limit int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]T, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + r.capacity) % r.capacity
		out = append(out, r.data[idx])
	}
	return out
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Ring[T]) lenLocked() int {
	if r.full {
		return r.capacity
	}
	return r.next
}
