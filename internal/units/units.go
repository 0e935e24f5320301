// Package units provides shared constants and conversions between raw
// accelerometer units (m/s²) and G-force multiples.
package units

// Gravity is standard gravity in m/s². Accelerometer components are divided
// by this to express forces as G multiples.
const Gravity = 9.81

// ToG converts an acceleration in m/s² to a multiple of standard gravity.
func ToG(metersPerSecondSquared float64) float64 {
	return metersPerSecondSquared / Gravity
}

// FromG converts a G-force multiple back to m/s².
func FromG(g float64) float64 {
	return g * Gravity
}
