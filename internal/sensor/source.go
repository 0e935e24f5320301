// Package sensor supplies raw 3-axis acceleration samples from hardware or
// replay sources. Samples are unvalidated at this layer; the stream decides
// what to drop.
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable reports that no hardware sensor could be opened. Fatal to
// stream initialization; callers do not retry automatically.
var ErrUnavailable = errors.New("sensor: hardware unavailable")

// Sample is one raw accelerometer sample in m/s², gravity already removed by
// the device. Components may be garbage (NaN, Inf); downstream validation
// filters them.
type Sample struct {
	X, Y, Z   float64
	Timestamp time.Time
}

// Source is an asynchronous producer of raw samples plus an error channel
// for non-fatal read problems. Samples closes when the source is exhausted
// or closed.
type Source interface {
	// Open acquires the underlying device or file and starts producing.
	// A missing device reports ErrUnavailable.
	Open() error

	// Samples returns the raw sample channel.
	Samples() <-chan Sample

	// Errors returns the channel for non-fatal source errors.
	Errors() <-chan error

	// Close stops production and releases the device.
	Close() error
}

// parseSample parses one wire line of the form "x,y,z" (three decimal
// fields, m/s²) into a Sample stamped with now.
func parseSample(line string, now time.Time) (Sample, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != 3 {
		return Sample{}, fmt.Errorf("invalid sample line %q: expected 3 segments, got %d", line, len(segments))
	}

	var components [3]float64
	for i, seg := range segments {
		v, err := strconv.ParseFloat(strings.TrimSpace(seg), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid sample line %q: %w", line, err)
		}
		components[i] = v
	}

	return Sample{
		X:         components[0],
		Y:         components[1],
		Z:         components[2],
		Timestamp: now,
	}, nil
}
