// Package smoothing reduces high-frequency sensor noise (road vibration)
// before readings reach event detection and visualisation.
package smoothing

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/drivesense/internal/reading"
)

// ErrEmptyWindow is returned when asked to smooth zero samples. The caller
// owns the sliding window, so this indicates a caller bug.
var ErrEmptyWindow = errors.New("smoothing: empty window")

// Filter maintains a sliding window of the most recent raw readings and
// emits one smoothed reading per pushed sample once the window is full
// (sliding window, step 1). Not safe for concurrent use; the stream is the
// single writer.
type Filter struct {
	window []reading.Reading
	size   int
	head   int // next write position
	count  int // readings stored so far, up to size
}

// NewFilter creates a Filter over the given window size. Sizes below 1 fall
// back to a window of 1, which passes readings through unchanged.
func NewFilter(size int) *Filter {
	if size < 1 {
		size = 1
	}
	return &Filter{
		window: make([]reading.Reading, size),
		size:   size,
	}
}

// Size returns the configured window size.
func (f *Filter) Size() int {
	return f.size
}

// Push adds a raw reading to the window. Once the window has filled, every
// push produces one smoothed reading over the last Size samples; before
// that, ok is false and no reading is emitted.
func (f *Filter) Push(r reading.Reading) (smoothed reading.Reading, ok bool) {
	f.window[f.head] = r
	f.head = (f.head + 1) % f.size
	if f.count < f.size {
		f.count++
	}
	if f.count < f.size {
		return reading.Reading{}, false
	}

	s, err := Smooth(f.ordered())
	if err != nil {
		// Unreachable: the window is full here.
		return reading.Reading{}, false
	}
	return s, true
}

// Reset empties the window. The filter emits nothing again until Size new
// samples accumulate.
func (f *Filter) Reset() {
	f.head = 0
	f.count = 0
}

// ordered returns the window contents from oldest to newest.
func (f *Filter) ordered() []reading.Reading {
	out := make([]reading.Reading, f.count)
	for i := 0; i < f.count; i++ {
		idx := (f.head - f.count + i + f.size) % f.size
		out[i] = f.window[idx]
	}
	return out
}

// Smooth produces one reading whose components are the arithmetic mean of
// the window's components and whose timestamp is that of the newest sample.
// The window must be ordered oldest to newest and non-empty.
func Smooth(window []reading.Reading) (reading.Reading, error) {
	if len(window) == 0 {
		return reading.Reading{}, ErrEmptyWindow
	}

	xs := make([]float64, len(window))
	ys := make([]float64, len(window))
	zs := make([]float64, len(window))
	for i, r := range window {
		xs[i] = r.X
		ys[i] = r.Y
		zs[i] = r.Z
	}

	return reading.Reading{
		X:         stat.Mean(xs, nil),
		Y:         stat.Mean(ys, nil),
		Z:         stat.Mean(zs, nil),
		Timestamp: window[len(window)-1].Timestamp,
	}, nil
}
