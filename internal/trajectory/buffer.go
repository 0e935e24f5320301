package trajectory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/drivesense/internal/config"
)

// Buffer is a fixed-capacity ring of trajectory points. When full, adding a
// point evicts the oldest one. Safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	points    []Point
	head      int // index of the oldest point
	size      int
	observers map[string]func()
}

// NewBuffer returns a buffer holding at most capacity points. A capacity
// below one falls back to the default.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = config.DefaultTrajectoryCapacity
	}
	return &Buffer{
		points:    make([]Point, capacity),
		observers: make(map[string]func()),
	}
}

// Add appends a point, evicting the oldest when the buffer is full, and
// notifies observers.
func (b *Buffer) Add(p Point) {
	b.mu.Lock()
	if b.size < len(b.points) {
		b.points[(b.head+b.size)%len(b.points)] = p
		b.size++
	} else {
		b.points[b.head] = p
		b.head = (b.head + 1) % len(b.points)
	}
	fns := b.observerList()
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Clear empties the buffer. Observers are notified only when there was
// something to remove.
func (b *Buffer) Clear() {
	b.mu.Lock()
	if b.size == 0 {
		b.mu.Unlock()
		return
	}
	b.head = 0
	b.size = 0
	fns := b.observerList()
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of points currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the maximum number of points the buffer holds.
func (b *Buffer) Capacity() int {
	return len(b.points)
}

// Points returns a snapshot of the buffer ordered oldest to newest.
func (b *Buffer) Points() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Point, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.points[(b.head+i)%len(b.points)]
	}
	return out
}

// Oldest returns the earliest retained point, and false when empty.
func (b *Buffer) Oldest() (Point, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return Point{}, false
	}
	return b.points[b.head], true
}

// Newest returns the most recent point, and false when empty.
func (b *Buffer) Newest() (Point, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return Point{}, false
	}
	return b.points[(b.head+b.size-1)%len(b.points)], true
}

// Range returns the retained points whose timestamps fall within
// [from, to], inclusive, ordered oldest to newest.
func (b *Buffer) Range(from, to time.Time) []Point {
	var out []Point
	for _, p := range b.Points() {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Observe registers a callback invoked after every change to the buffer.
// The returned id cancels the registration via Unobserve. Callbacks run on
// the mutating goroutine and should return quickly.
func (b *Buffer) Observe(fn func()) string {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[id] = fn
	return id
}

// Unobserve removes a previously registered observer.
func (b *Buffer) Unobserve(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, id)
}

// observerList snapshots the callbacks; callers must hold b.mu.
func (b *Buffer) observerList() []func() {
	fns := make([]func(), 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	return fns
}
