// Package reading defines the validated accelerometer sample that flows
// through the pipeline and its derived G-force quantities.
package reading

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/drivesense/internal/units"
)

// ClockSkewTolerance is how far into the future a sample timestamp may sit
// before the sample is rejected. Absorbs jitter between the sensor clock and
// the host clock.
const ClockSkewTolerance = time.Second

var (
	// ErrNonFinite marks a sample with a NaN or infinite component.
	ErrNonFinite = errors.New("reading: non-finite component")

	// ErrFutureTimestamp marks a sample stamped beyond the skew tolerance.
	ErrFutureTimestamp = errors.New("reading: timestamp in the future")
)

// Reading is one validated accelerometer sample. Components are in m/s² with
// gravity already removed by the sensor. Values are immutable once built.
type Reading struct {
	X, Y, Z   float64
	Timestamp time.Time
}

// New validates the components against now and returns a Reading. It fails
// if any component is NaN or infinite, or if the timestamp is later than
// now plus ClockSkewTolerance.
func New(x, y, z float64, timestamp, now time.Time) (Reading, error) {
	for _, c := range [3]float64{x, y, z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Reading{}, fmt.Errorf("%w: (%v, %v, %v)", ErrNonFinite, x, y, z)
		}
	}
	if timestamp.After(now.Add(ClockSkewTolerance)) {
		return Reading{}, fmt.Errorf("%w: %s is beyond %s + %s",
			ErrFutureTimestamp, timestamp.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), ClockSkewTolerance)
	}
	return Reading{X: x, Y: y, Z: z, Timestamp: timestamp}, nil
}

// Magnitude returns the total acceleration as a G-force multiple.
func (r Reading) Magnitude() float64 {
	return units.ToG(math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z))
}

// LateralG returns the left/right component as a G-force multiple.
func (r Reading) LateralG() float64 {
	return units.ToG(r.X)
}

// LongitudinalG returns the forward/backward component as a G-force
// multiple. Positive is acceleration, negative is braking.
func (r Reading) LongitudinalG() float64 {
	return units.ToG(r.Y)
}

// VerticalG returns the up/down component as a G-force multiple.
func (r Reading) VerticalG() float64 {
	return units.ToG(r.Z)
}
