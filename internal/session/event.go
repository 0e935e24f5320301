// Package session classifies smoothed readings into driving events,
// accumulates per-session statistics and scores completed sessions.
package session

import (
	"math"
	"time"
)

// EventType is the closed set of driving event classifications.
type EventType string

const (
	HardAcceleration EventType = "hardAcceleration"
	HardBraking      EventType = "hardBraking"
	SharpTurn        EventType = "sharpTurn"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case HardAcceleration, HardBraking, SharpTurn:
		return true
	}
	return false
}

// Event is one detected maneuver. Magnitude is the G-force that triggered
// the classification, always non-negative (braking reports the absolute
// value of its longitudinal component).
type Event struct {
	Type      EventType
	Timestamp time.Time
	Magnitude float64
}

// Penalty scoring constants. Severity grows with how far the magnitude
// exceeds the reference, two points per tenth of a G, capped.
const (
	penaltyBase        = 5
	penaltyReferenceG  = 0.3
	penaltyStepG       = 0.1
	penaltyPointsPerSt = 2
	penaltySeverityCap = 10
)

// PenaltyPoints is the score deduction for this event: a flat base plus a
// capped severity term.
func (e Event) PenaltyPoints() int {
	severity := int(math.Round((e.Magnitude - penaltyReferenceG) / penaltyStepG * penaltyPointsPerSt))
	if severity < 0 {
		severity = 0
	}
	if severity > penaltySeverityCap {
		severity = penaltySeverityCap
	}
	return penaltyBase + severity
}
