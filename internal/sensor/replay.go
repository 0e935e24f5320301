package sensor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/drivesense/internal/timeutil"
)

// ReplaySource replays recorded "x,y,z" sample lines from a fixtures file at
// a fixed period. Used for development and demos without an attached IMU.
type ReplaySource struct {
	path   string
	period time.Duration
	clock  timeutil.Clock
	loop   bool

	mu      sync.Mutex
	lines   []string
	samples chan Sample
	errs    chan error
	stop    chan struct{}
	opened  bool
	closed  bool
}

// NewReplaySource creates a replay source over the fixtures file at path,
// emitting one sample per period. With loop set, playback restarts from the
// top when the file is exhausted; otherwise the sample channel closes.
func NewReplaySource(path string, period time.Duration, clock timeutil.Clock, loop bool) *ReplaySource {
	return &ReplaySource{
		path:    path,
		period:  period,
		clock:   clock,
		loop:    loop,
		samples: make(chan Sample),
		errs:    make(chan error, 1),
		stop:    make(chan struct{}),
	}
}

// Open reads the fixtures file and starts playback. A missing or empty file
// reports ErrUnavailable.
func (r *ReplaySource) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opened {
		return nil
	}
	if r.closed {
		return fmt.Errorf("sensor: source closed")
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, r.path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			r.lines = append(r.lines, line)
		}
	}
	if len(r.lines) == 0 {
		return fmt.Errorf("%w: %s contains no samples", ErrUnavailable, r.path)
	}

	r.opened = true
	go r.play()
	return nil
}

// Samples returns the replayed sample channel.
func (r *ReplaySource) Samples() <-chan Sample {
	return r.samples
}

// Errors returns the channel for parse errors in the fixtures file.
func (r *ReplaySource) Errors() <-chan error {
	return r.errs
}

// Close stops playback.
func (r *ReplaySource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.stop)
	return nil
}

func (r *ReplaySource) play() {
	defer close(r.samples)

	ticker := r.clock.NewTicker(r.period)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C():
			sample, err := parseSample(r.lines[i], now)
			if err != nil {
				select {
				case r.errs <- err:
				default:
				}
			} else {
				select {
				case r.samples <- sample:
				case <-r.stop:
					return
				}
			}

			i++
			if i >= len(r.lines) {
				if !r.loop {
					return
				}
				i = 0
			}
		}
	}
}
