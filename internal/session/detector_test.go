package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/drivesense/internal/timeutil"
)

// recordingSaver captures the session handed to it.
type recordingSaver struct {
	saved *Session
	id    int64
	err   error
}

func (r *recordingSaver) SaveSession(_ context.Context, s *Session) (int64, error) {
	r.saved = s
	return r.id, r.err
}

func newTestDetector(t *testing.T, saver Saver) (*Detector, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(sessionEpoch)
	return NewDetector(saver, clock), clock
}

func TestSessionExclusivity(t *testing.T) {
	d, _ := newTestDetector(t, nil)

	if _, err := d.EndSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("EndSession with no session: err = %v, want ErrNoSession", err)
	}

	if _, err := d.StartSession(); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := d.StartSession(); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second StartSession: err = %v, want ErrSessionActive", err)
	}

	if _, err := d.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if d.Current() != nil {
		t.Error("Current() should be nil after EndSession")
	}

	// The detector cycles: a new session can start after the last ended.
	if _, err := d.StartSession(); err != nil {
		t.Errorf("StartSession after EndSession failed: %v", err)
	}
}

func TestHandleReadingWithoutSession(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	r := mustReading(t, 0, -9.81, 0, sessionEpoch)
	if events := d.HandleReading(r); events != nil {
		t.Errorf("HandleReading outside a session = %v, want nil", events)
	}
}

func TestStationaryDeviceProducesNoEvents(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	s, _ := d.StartSession()

	for i := 0; i < 10; i++ {
		ts := sessionEpoch.Add(time.Duration(i) * time.Second)
		if events := d.HandleReading(mustReading(t, 0, 0, 9.81, ts)); len(events) != 0 {
			t.Fatalf("stationary reading produced events: %v", events)
		}
	}

	if s.TotalReadings != 10 {
		t.Errorf("TotalReadings = %d, want 10", s.TotalReadings)
	}
	if avg := s.AverageMagnitude(); avg < 0.999 || avg > 1.001 {
		t.Errorf("AverageMagnitude = %v, want ~1.0g", avg)
	}
}

func TestHardBrakingDetection(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	s, _ := d.StartSession()

	// longitudinalG = -1.0, well past the braking threshold.
	events := d.HandleReading(mustReading(t, 0, -9.81, 0, sessionEpoch.Add(time.Second)))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	e := events[0]
	if e.Type != HardBraking {
		t.Errorf("Type = %q, want %q", e.Type, HardBraking)
	}
	if e.Magnitude < 0.999 || e.Magnitude > 1.001 {
		t.Errorf("Magnitude = %v, want 1.0 (absolute value)", e.Magnitude)
	}
	if e.PenaltyPoints() != 15 {
		t.Errorf("PenaltyPoints = %d, want 15", e.PenaltyPoints())
	}
	if len(s.Events) != 1 {
		t.Errorf("session has %d events, want 1", len(s.Events))
	}
}

func TestHardAccelerationDetection(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	d.StartSession()

	// longitudinalG = +0.5.
	events := d.HandleReading(mustReading(t, 0, 4.905, 0, sessionEpoch.Add(time.Second)))
	if len(events) != 1 || events[0].Type != HardAcceleration {
		t.Fatalf("events = %v, want one hardAcceleration", events)
	}
}

func TestSharpTurnDetectionBothDirections(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	d.StartSession()

	left := d.HandleReading(mustReading(t, -4.905, 0, 0, sessionEpoch.Add(time.Second)))
	if len(left) != 1 || left[0].Type != SharpTurn {
		t.Fatalf("left turn events = %v, want one sharpTurn", left)
	}
	if left[0].Magnitude < 0.499 || left[0].Magnitude > 0.501 {
		t.Errorf("Magnitude = %v, want 0.5 (absolute value)", left[0].Magnitude)
	}

	right := d.HandleReading(mustReading(t, 4.905, 0, 0, sessionEpoch.Add(5*time.Second)))
	if len(right) != 1 || right[0].Type != SharpTurn {
		t.Fatalf("right turn events = %v, want one sharpTurn", right)
	}
}

func TestBrakeAndTurnOnOneReading(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	s, _ := d.StartSession()

	// Braking hard mid-swerve: both axes cross their thresholds on the same
	// reading, so both events are recorded.
	events := d.HandleReading(mustReading(t, 9.81, -9.81, 0, sessionEpoch.Add(time.Second)))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}
	if events[0].Type != HardBraking || events[1].Type != SharpTurn {
		t.Errorf("events = [%s %s], want [%s %s]",
			events[0].Type, events[1].Type, HardBraking, SharpTurn)
	}
	if events[0].Magnitude < 0.999 || events[0].Magnitude > 1.001 {
		t.Errorf("braking magnitude = %v, want 1.0", events[0].Magnitude)
	}
	if len(s.Events) != 2 {
		t.Errorf("session has %d events, want 2", len(s.Events))
	}

	// The cooldown restarted once for the pair: 1s later still suppressed.
	if got := d.HandleReading(mustReading(t, 0, -9.81, 0, sessionEpoch.Add(2*time.Second))); len(got) != 0 {
		t.Errorf("event inside cooldown after the double: %v", got)
	}

	// 2s after the combined reading the cooldown has elapsed.
	if got := d.HandleReading(mustReading(t, 0, -9.81, 0, sessionEpoch.Add(3*time.Second))); len(got) != 1 {
		t.Errorf("event after cooldown: got %d, want 1", len(got))
	}
}

func TestCooldownSuppressesSecondEvent(t *testing.T) {
	d, _ := newTestDetector(t, nil)
	s, _ := d.StartSession()

	brake := func(ts time.Time) []Event {
		return d.HandleReading(mustReading(t, 0, -9.81, 0, ts))
	}

	first := brake(sessionEpoch.Add(time.Second))
	if len(first) != 1 {
		t.Fatalf("first braking: %d events, want 1", len(first))
	}

	// 1s later: inside the 2s cooldown, suppressed.
	second := brake(sessionEpoch.Add(2 * time.Second))
	if len(second) != 0 {
		t.Errorf("braking inside cooldown produced events: %v", second)
	}

	// 3s after the first: cooldown elapsed.
	third := brake(sessionEpoch.Add(4 * time.Second))
	if len(third) != 1 {
		t.Errorf("braking after cooldown: %d events, want 1", len(third))
	}

	// The cooldown is global: a sharp turn right after the second braking
	// event is suppressed too.
	turn := d.HandleReading(mustReading(t, 9.81, 0, 0, sessionEpoch.Add(5*time.Second)))
	if len(turn) != 0 {
		t.Errorf("turn inside cooldown produced events: %v", turn)
	}

	// Suppressed readings still count toward the statistics.
	if s.TotalReadings != 4 {
		t.Errorf("TotalReadings = %d, want 4", s.TotalReadings)
	}
	if len(s.Events) != 2 {
		t.Errorf("session has %d events, want 2", len(s.Events))
	}
}

func TestEndSessionSavesAndAssignsID(t *testing.T) {
	saver := &recordingSaver{id: 42}
	d, clock := newTestDetector(t, saver)

	d.StartSession()
	clock.Advance(time.Minute)

	s, err := d.EndSession(context.Background())
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if saver.saved != s {
		t.Error("saver did not receive the ended session")
	}
	if s.ID != 42 {
		t.Errorf("ID = %d, want 42", s.ID)
	}
	if s.IsActive() {
		t.Error("session should be ended")
	}
	if d := s.Duration(time.Time{}); d != time.Minute {
		t.Errorf("Duration = %v, want 1m", d)
	}
}

func TestEndSessionSaveFailureIsNotFatal(t *testing.T) {
	saver := &recordingSaver{err: errors.New("disk full")}
	d, _ := newTestDetector(t, saver)

	d.StartSession()
	s, err := d.EndSession(context.Background())
	if err != nil {
		t.Fatalf("EndSession returned %v; persistence failures are logged, not returned", err)
	}
	if s.IsActive() {
		t.Error("session must remain ended despite the save failure")
	}
	if s.ID != 0 {
		t.Errorf("ID = %d, want 0 when the save failed", s.ID)
	}
}
