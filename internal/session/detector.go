package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/drivesense/internal/monitoring"
	"github.com/banshee-data/drivesense/internal/reading"
	"github.com/banshee-data/drivesense/internal/timeutil"
)

// Classification thresholds, in G. Fixed for now; making them tunable means
// revisiting the penalty reference too.
const (
	HardAccelerationThreshold = 0.3
	HardBrakingThreshold      = -0.3
	SharpTurnThreshold        = 0.3

	// EventCooldown suppresses detection of any further event after one
	// fires, so a single maneuver produces a single event.
	EventCooldown = 2 * time.Second
)

var (
	// ErrSessionActive reports a StartSession while one is already running.
	ErrSessionActive = errors.New("session: session already active")

	// ErrNoSession reports an EndSession with nothing to end.
	ErrNoSession = errors.New("session: no active session")
)

// Saver persists completed sessions. Implemented by the db package.
type Saver interface {
	SaveSession(ctx context.Context, s *Session) (int64, error)
}

// Detector consumes smoothed readings while a session is active,
// classifies them into events and maintains the session statistics. At most
// one session is active per detector.
type Detector struct {
	clock timeutil.Clock
	saver Saver

	mu          sync.Mutex
	current     *Session
	lastEventAt time.Time
}

// NewDetector creates a detector. saver may be nil, in which case completed
// sessions are simply returned to the caller.
func NewDetector(saver Saver, clock timeutil.Clock) *Detector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Detector{clock: clock, saver: saver}
}

// StartSession begins a new session. Fails with ErrSessionActive when one
// is already running.
func (d *Detector) StartSession() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		return nil, ErrSessionActive
	}
	d.current = NewSession(d.clock.Now())
	d.lastEventAt = time.Time{}
	return d.current, nil
}

// EndSession finalizes the active session and hands it to the saver. A
// persistence failure is logged, not returned: the session stays ended
// either way. Fails with ErrNoSession when nothing is active.
func (d *Detector) EndSession(ctx context.Context) (*Session, error) {
	d.mu.Lock()
	s := d.current
	if s == nil {
		d.mu.Unlock()
		return nil, ErrNoSession
	}
	s.End(d.clock.Now())
	d.current = nil
	d.mu.Unlock()

	if d.saver != nil {
		id, err := d.saver.SaveSession(ctx, s)
		if err != nil {
			monitoring.Logf("session: save failed: %v", err)
		} else {
			s.ID = id
		}
	}
	return s, nil
}

// Current returns the active session, or nil.
func (d *Detector) Current() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// HandleReading processes one reading and returns any events it produced.
// Statistics are updated before classification, so a reading that triggers
// an event still counts toward the session averages. Outside a session it
// is a no-op.
func (d *Detector) HandleReading(r reading.Reading) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return nil
	}

	d.current.RecordReading(r)

	// Cooldown is measured on reading timestamps, which are monotonic per
	// source; one maneuver spanning several readings yields one event.
	if !d.lastEventAt.IsZero() && r.Timestamp.Sub(d.lastEventAt) < EventCooldown {
		return nil
	}

	// The thresholds live on different axes and signs, so normally at most
	// one fires. They are still checked independently; if several fire on
	// one reading, each is recorded and the cooldown restarts once.
	var events []Event
	if lg := r.LongitudinalG(); lg > HardAccelerationThreshold {
		events = append(events, Event{Type: HardAcceleration, Timestamp: r.Timestamp, Magnitude: lg})
	}
	if lg := r.LongitudinalG(); lg < HardBrakingThreshold {
		events = append(events, Event{Type: HardBraking, Timestamp: r.Timestamp, Magnitude: -lg})
	}
	if lat := r.LateralG(); lat > SharpTurnThreshold || lat < -SharpTurnThreshold {
		mag := lat
		if mag < 0 {
			mag = -mag
		}
		events = append(events, Event{Type: SharpTurn, Timestamp: r.Timestamp, Magnitude: mag})
	}

	for _, e := range events {
		d.current.AddEvent(e)
	}
	if len(events) > 0 {
		d.lastEventAt = r.Timestamp
	}
	return events
}
