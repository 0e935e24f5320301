// Package stream owns the hardware sensor subscription and turns raw
// samples into a broadcast stream of validated, smoothed readings at a
// throttled rate.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/drivesense/internal/config"
	"github.com/banshee-data/drivesense/internal/monitoring"
	"github.com/banshee-data/drivesense/internal/reading"
	"github.com/banshee-data/drivesense/internal/sensor"
	"github.com/banshee-data/drivesense/internal/smoothing"
	"github.com/banshee-data/drivesense/internal/timeutil"
)

// State is the lifecycle state of a SensorStream.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StatePaused
	StateFailed
	StateDisposed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

var (
	// ErrDisposed reports an operation on a disposed stream. A fresh
	// instance must be created to resume monitoring.
	ErrDisposed = errors.New("stream: disposed")

	// ErrInvalidState reports a lifecycle operation from the wrong state.
	ErrInvalidState = errors.New("stream: invalid state")

	// ErrMalfunction reports repeated invalid samples or a source-reported
	// error mid-stream. Non-fatal: the stream keeps running.
	ErrMalfunction = errors.New("stream: sensor malfunction")
)

// DefaultMalfunctionThreshold is the run length of consecutive invalid
// samples that is reported as a malfunction rather than dropped silently.
const DefaultMalfunctionThreshold = 10

// Emission is one item delivered to subscribers: either a smoothed reading
// or a non-fatal stream error.
type Emission struct {
	Reading reading.Reading
	Err     error
}

// Config configures a SensorStream. Zero fields take defaults.
type Config struct {
	Source sensor.Source

	// Clock defaults to the real clock.
	Clock timeutil.Clock

	// SmoothingWindow defaults to config.DefaultSmoothingWindow.
	SmoothingWindow int

	// ThrottlePeriod defaults to config.ThrottlePeriodDefault. At most one
	// sample per period enters the pipeline, measured by sample timestamps;
	// samples landing inside the period are dropped.
	ThrottlePeriod time.Duration

	// SubscriberBuffer is the per-subscriber channel depth. Defaults to 16.
	SubscriberBuffer int

	// MalfunctionThreshold defaults to DefaultMalfunctionThreshold.
	MalfunctionThreshold int
}

// SensorStream converts raw hardware samples into validated, smoothed
// readings broadcast to any number of subscribers. One goroutine consumes
// the source; subscribers receive in the order readings were produced.
type SensorStream struct {
	source               sensor.Source
	clock                timeutil.Clock
	filter               *smoothing.Filter
	throttle             time.Duration
	subscriberBuffer     int
	malfunctionThreshold int

	mu          sync.Mutex
	state       State
	subscribers map[string]chan Emission
	lastAccept  time.Time
	invalidRun  int
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a SensorStream over the given source. The stream does nothing
// until Initialize is called.
func New(cfg Config) *SensorStream {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	window := cfg.SmoothingWindow
	if window < 1 {
		window = config.DefaultSmoothingWindow
	}
	throttle := cfg.ThrottlePeriod
	if throttle <= 0 {
		throttle = config.ThrottlePeriodDefault
	}
	buffer := cfg.SubscriberBuffer
	if buffer < 1 {
		buffer = 16
	}
	threshold := cfg.MalfunctionThreshold
	if threshold < 1 {
		threshold = DefaultMalfunctionThreshold
	}

	return &SensorStream{
		source:               cfg.Source,
		clock:                clock,
		filter:               smoothing.NewFilter(window),
		throttle:             throttle,
		subscriberBuffer:     buffer,
		malfunctionThreshold: threshold,
		subscribers:          make(map[string]chan Emission),
	}
}

// State returns the current lifecycle state.
func (s *SensorStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize opens the sensor source and starts emitting. Idempotent when
// already running; fails with the source's unavailable error when the
// hardware cannot be opened (reported once, no automatic retry).
func (s *SensorStream) Initialize() error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return nil
	case StateDisposed:
		s.mu.Unlock()
		return ErrDisposed
	case StateUninitialized:
		// proceed
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot initialize from %s", ErrInvalidState, state)
	}
	s.state = StateInitializing
	s.mu.Unlock()

	err := s.source.Open()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("stream: initialize: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning
	go s.run(ctx)
	return nil
}

// Pause stops forwarding new readings without tearing down the source
// subscription. No-op when already paused; cheap to toggle on app
// backgrounding.
func (s *SensorStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePaused:
		return nil
	case StateRunning:
		s.state = StatePaused
		return nil
	case StateDisposed:
		return ErrDisposed
	default:
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidState, s.state)
	}
}

// Resume restarts forwarding after a Pause. No-op when already running.
func (s *SensorStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateRunning:
		return nil
	case StatePaused:
		s.state = StateRunning
		return nil
	case StateDisposed:
		return ErrDisposed
	default:
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidState, s.state)
	}
}

// Subscribe registers a new consumer and returns its id and channel.
// Emissions arrive in production order; a consumer that falls behind its
// buffer loses newest-first rather than blocking the pipeline. The channel
// is closed on Dispose or Unsubscribe.
func (s *SensorStream) Subscribe() (string, <-chan Emission) {
	id := uuid.NewString()
	ch := make(chan Emission, s.subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (s *SensorStream) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Dispose cancels the source subscription, closes all subscriber channels
// and terminates the stream. The instance is not reusable afterwards.
// Safe to call more than once.
func (s *SensorStream) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisposed
	cancel := s.cancel
	done := s.done
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := s.source.Close(); err != nil {
		monitoring.Logf("stream: source close: %v", err)
	}
	if done != nil {
		<-done
	}
}

// run consumes the source until cancelled or the source is exhausted.
func (s *SensorStream) run(ctx context.Context) {
	defer close(s.done)

	samples := s.source.Samples()
	sourceErrs := s.source.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-sourceErrs:
			if !ok {
				sourceErrs = nil
				continue
			}
			s.broadcast(Emission{Err: fmt.Errorf("%w: %v", ErrMalfunction, err)})

		case sample, ok := <-samples:
			if !ok {
				return
			}
			s.handleSample(sample)
		}
	}
}

// handleSample validates, throttles and smooths one raw sample, then
// broadcasts the result.
func (s *SensorStream) handleSample(sample sensor.Sample) {
	s.mu.Lock()

	if s.state != StateRunning {
		// Paused or mid-dispose: new readings are not forwarded.
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	r, err := reading.New(sample.X, sample.Y, sample.Z, sample.Timestamp, now)
	if err != nil {
		// Isolated invalid samples are expected sensor noise and are
		// dropped silently. A long run of them is a malfunction.
		s.invalidRun++
		if s.invalidRun >= s.malfunctionThreshold {
			s.invalidRun = 0
			s.mu.Unlock()
			s.broadcast(Emission{Err: fmt.Errorf("%w: %d consecutive invalid samples",
				ErrMalfunction, s.malfunctionThreshold)})
			return
		}
		s.mu.Unlock()
		return
	}
	s.invalidRun = 0

	// Throttle on sample timestamps: accept at most one sample per period.
	// Samples landing inside the window are dropped, so the next accepted
	// sample is always the most recent one. Device timestamps are
	// monotonic per source, which keeps this stable when wall time jumps.
	if !s.lastAccept.IsZero() && r.Timestamp.Sub(s.lastAccept) < s.throttle {
		s.mu.Unlock()
		return
	}
	s.lastAccept = r.Timestamp

	smoothed, ok := s.filter.Push(r)
	s.mu.Unlock()
	if !ok {
		// Window still filling: nothing to emit yet.
		return
	}

	s.broadcast(Emission{Reading: smoothed})
}

// broadcast delivers an emission to every subscriber without blocking the
// pipeline; a full subscriber buffer sheds the emission for that consumer.
// The lock is held across the sends so Dispose cannot close a channel
// mid-broadcast; sends never block, so this is cheap.
func (s *SensorStream) broadcast(e Emission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			monitoring.Logf("stream: subscriber buffer full, emission dropped")
		}
	}
}
