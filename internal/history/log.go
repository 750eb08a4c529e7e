// Package history provides a bounded LIFO log of reversible actions.
package history

// DefaultCapacity is the number of undo steps kept when no limit is configured.
const DefaultCapacity = 15

// Log is a fixed-capacity stack backed by a ring buffer. Pushing onto a full
// log silently drops the oldest entry.
type Log[T any] struct {
	buf   []T
	head  int // Index of the oldest entry
	count int
}

// New creates a log holding at most capacity entries. A non-positive
// capacity selects DefaultCapacity.
func New[T any](capacity int) *Log[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log[T]{buf: make([]T, capacity)}
}

// Push records an entry and reports whether the oldest one was evicted to
// make room.
func (l *Log[T]) Push(v T) bool {
	if l.count == len(l.buf) {
		l.buf[l.head] = v
		l.head = (l.head + 1) % len(l.buf)
		return true
	}
	l.buf[(l.head+l.count)%len(l.buf)] = v
	l.count++
	return false
}

// Pop removes and returns the most recent entry.
func (l *Log[T]) Pop() (T, bool) {
	var zero T
	if l.count == 0 {
		return zero, false
	}
	i := (l.head + l.count - 1) % len(l.buf)
	v := l.buf[i]
	l.buf[i] = zero
	l.count--
	return v, true
}

// Peek returns the most recent entry without removing it.
func (l *Log[T]) Peek() (T, bool) {
	var zero T
	if l.count == 0 {
		return zero, false
	}
	return l.buf[(l.head+l.count-1)%len(l.buf)], true
}

// Len returns the number of entries.
func (l *Log[T]) Len() int {
	return l.count
}

// Cap returns the capacity.
func (l *Log[T]) Cap() int {
	return len(l.buf)
}

// Each calls fn for every entry from oldest to newest.
func (l *Log[T]) Each(fn func(T)) {
	for i := 0; i < l.count; i++ {
		fn(l.buf[(l.head+i)%len(l.buf)])
	}
}

// Reset drops every entry.
func (l *Log[T]) Reset() {
	var zero T
	for i := range l.buf {
		l.buf[i] = zero
	}
	l.head = 0
	l.count = 0
}
