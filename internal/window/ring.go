// Package window holds the bounded in-memory history used for serving and
// training.
package window

// Ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element. It is not safe for concurrent use; callers hold their own lock.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing returns an empty ring. A capacity below one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v at the tail and reports whether the head was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Last returns the most recently pushed element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Snapshot returns the contents oldest first. The returned slice is a copy.
func (r *Ring[T]) Snapshot() []T {
	return r.Tail(r.size)
}

// Tail returns a copy of the newest n elements, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	skip := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+skip+i)%len(r.buf)]
	}
	return out
}

// Reset drops every element without changing the capacity.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start = 0
	r.size = 0
}
