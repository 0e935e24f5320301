// Package trajectory keeps a bounded history of recent motion points for
// live visualization. Readings are projected into screen coordinates and
// stored in a fixed-capacity ring; observers are told when the picture
// changes.
package trajectory

import (
	"time"

	"github.com/banshee-data/drivesense/internal/reading"
)

// Point is one plotted position with the magnitude that produced it, used
// for color-coding the trail.
type Point struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Magnitude float64   `json:"magnitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Mapper projects device-frame readings onto a drawing surface. Lateral
// acceleration moves the point along X, longitudinal along Y. Screen Y
// grows downward, so forward acceleration is negated to plot upward.
type Mapper struct {
	ScaleX  float64
	ScaleY  float64
	CenterX float64
	CenterY float64
}

// Map converts a reading into a drawable point.
func (m Mapper) Map(r reading.Reading) Point {
	return Point{
		X:         m.CenterX + r.X*m.ScaleX,
		Y:         m.CenterY - r.Y*m.ScaleY,
		Magnitude: r.Magnitude(),
		Timestamp: r.Timestamp,
	}
}
