package smoothing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/drivesense/internal/reading"
)

var base = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func r(x, y, z float64, offset time.Duration) reading.Reading {
	return reading.Reading{X: x, Y: y, Z: z, Timestamp: base.Add(offset)}
}

func TestSmoothEmptyWindow(t *testing.T) {
	_, err := Smooth(nil)
	if !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("Smooth(nil) error = %v, want ErrEmptyWindow", err)
	}
}

// Smoothing a window of identical samples must reproduce the sample exactly.
func TestSmoothConstantInput(t *testing.T) {
	window := []reading.Reading{
		r(1.5, -2.5, 9.81, 0),
		r(1.5, -2.5, 9.81, time.Millisecond),
		r(1.5, -2.5, 9.81, 2*time.Millisecond),
	}

	got, err := Smooth(window)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if got.X != 1.5 || got.Y != -2.5 || got.Z != 9.81 {
		t.Errorf("Smooth() = (%v, %v, %v), want (1.5, -2.5, 9.81)", got.X, got.Y, got.Z)
	}
}

func TestSmoothMeanAndTimestamp(t *testing.T) {
	window := []reading.Reading{
		r(0, 0, 0, 0),
		r(2, 4, 6, time.Millisecond),
		r(4, 8, 12, 2*time.Millisecond),
	}

	got, err := Smooth(window)
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if math.Abs(got.X-2) > 1e-12 || math.Abs(got.Y-4) > 1e-12 || math.Abs(got.Z-6) > 1e-12 {
		t.Errorf("Smooth() = (%v, %v, %v), want (2, 4, 6)", got.X, got.Y, got.Z)
	}
	if !got.Timestamp.Equal(window[2].Timestamp) {
		t.Errorf("Smooth() timestamp = %v, want newest sample's %v", got.Timestamp, window[2].Timestamp)
	}
}

func TestFilterEmitsOnlyAfterWindowFills(t *testing.T) {
	f := NewFilter(3)

	for i := 0; i < 2; i++ {
		if _, ok := f.Push(r(float64(i), 0, 0, time.Duration(i)*time.Millisecond)); ok {
			t.Fatalf("Push %d emitted before window filled", i)
		}
	}

	smoothed, ok := f.Push(r(2, 0, 0, 2*time.Millisecond))
	if !ok {
		t.Fatal("Push did not emit once window filled")
	}
	if math.Abs(smoothed.X-1) > 1e-12 {
		t.Errorf("smoothed X = %v, want mean 1", smoothed.X)
	}
}

// Step 1 sliding: every push after the window fills produces an emission
// over the last Size samples.
func TestFilterSlidesByOne(t *testing.T) {
	f := NewFilter(2)

	f.Push(r(0, 0, 0, 0))
	first, ok := f.Push(r(2, 0, 0, time.Millisecond))
	if !ok || math.Abs(first.X-1) > 1e-12 {
		t.Fatalf("first emission = (%v, %v), want X=1 ok=true", first.X, ok)
	}

	second, ok := f.Push(r(4, 0, 0, 2*time.Millisecond))
	if !ok {
		t.Fatal("second push did not emit")
	}
	// Window is now [2, 4].
	if math.Abs(second.X-3) > 1e-12 {
		t.Errorf("second emission X = %v, want 3", second.X)
	}
	if !second.Timestamp.Equal(base.Add(2 * time.Millisecond)) {
		t.Errorf("second emission timestamp = %v, want newest", second.Timestamp)
	}
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(2)
	f.Push(r(1, 0, 0, 0))
	f.Push(r(1, 0, 0, time.Millisecond))

	f.Reset()
	if _, ok := f.Push(r(1, 0, 0, 2*time.Millisecond)); ok {
		t.Error("Push emitted immediately after Reset")
	}
}

func TestNewFilterClampsSize(t *testing.T) {
	f := NewFilter(0)
	if f.Size() != 1 {
		t.Errorf("Size() = %d, want 1", f.Size())
	}
	// A window of 1 passes readings straight through.
	got, ok := f.Push(r(7, 8, 9, 0))
	if !ok || got.X != 7 || got.Y != 8 || got.Z != 9 {
		t.Errorf("pass-through = (%v, %v, %v) ok=%v, want (7, 8, 9) true", got.X, got.Y, got.Z, ok)
	}
}
