package sensor

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/drivesense/internal/timeutil"
)

// SerialSource reads raw accelerometer samples from an external IMU on a
// serial port. The device emits one "x,y,z" CSV line per sample.
type SerialSource struct {
	portName string
	clock    timeutil.Clock

	mu      sync.Mutex
	port    serial.Port
	samples chan Sample
	errs    chan error
	cancel  context.CancelFunc
	opened  bool
	closed  bool
}

// NewSerialSource creates a source for the named serial port. The port is
// not opened until Open is called.
func NewSerialSource(portName string, clock timeutil.Clock) *SerialSource {
	return &SerialSource{
		portName: portName,
		clock:    clock,
		samples:  make(chan Sample),
		errs:     make(chan error, 1),
	}
}

// NewSerialSourceFromPort wraps an already-open port. Used by tests and by
// callers that configure the port themselves.
func NewSerialSourceFromPort(port serial.Port, clock timeutil.Clock) *SerialSource {
	return &SerialSource{
		port:    port,
		clock:   clock,
		samples: make(chan Sample),
		errs:    make(chan error, 1),
	}
}

// Open opens the serial port and starts the read loop. A port that cannot
// be opened reports ErrUnavailable.
func (s *SerialSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}
	if s.closed {
		return fmt.Errorf("sensor: source closed")
	}

	if s.port == nil {
		mode := &serial.Mode{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: 1,
		}
		port, err := serial.Open(s.portName, mode)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.portName, err)
		}
		s.port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.opened = true
	go s.monitor(ctx)
	return nil
}

// Samples returns the raw sample channel. Closed when the read loop exits.
func (s *SerialSource) Samples() <-chan Sample {
	return s.samples
}

// Errors returns the channel for non-fatal read and parse errors.
func (s *SerialSource) Errors() <-chan error {
	return s.errs
}

// Close stops the read loop and closes the port.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

// monitor reads lines from the serial port and forwards parsed samples.
// The blocking scan runs in its own goroutine so the outer loop stays
// responsive to cancellation.
func (s *SerialSource) monitor(ctx context.Context) {
	defer close(s.samples)

	scan := bufio.NewScanner(s.port)
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-scanErrChan:
			s.reportError(fmt.Errorf("sensor: serial read: %w", err))
			return

		case line, ok := <-lineChan:
			if !ok {
				// The scan loop sends its final error before closing the
				// line channel; pick it up so it is not lost when this
				// branch wins the select.
				select {
				case err := <-scanErrChan:
					s.reportError(fmt.Errorf("sensor: serial read: %w", err))
				default:
				}
				return
			}
			sample, err := parseSample(line, s.clock.Now())
			if err != nil {
				s.reportError(err)
				continue
			}
			select {
			case s.samples <- sample:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reportError forwards an error without blocking the read loop. When the
// consumer is not draining errors, newer ones are shed.
func (s *SerialSource) reportError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
