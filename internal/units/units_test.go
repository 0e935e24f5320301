package units

import (
	"math"
	"testing"
)

func TestToG(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"one gravity", 9.81, 1.0},
		{"half gravity", 4.905, 0.5},
		{"negative", -9.81, -1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToG(tt.in); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ToG(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromGRoundTrip(t *testing.T) {
	for _, g := range []float64{-2.5, -0.3, 0, 0.15, 1.0, 3.2} {
		if got := ToG(FromG(g)); math.Abs(got-g) > 1e-12 {
			t.Errorf("ToG(FromG(%v)) = %v, want %v", g, got, g)
		}
	}
}
