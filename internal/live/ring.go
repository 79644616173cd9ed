package live

// Ring is a fixed-capacity buffer that keeps the most recent values
// pushed into it, discarding the oldest once full.
type Ring[T any] struct {
	buf   []T
	start int
	n     int
}

// NewRing creates a ring holding at most capacity values. A capacity
// of zero or less is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of values currently held.
func (r *Ring[T]) Len() int {
	return r.n
}

// Items returns the held values oldest first, as a fresh slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
