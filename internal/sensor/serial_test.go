package sensor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/drivesense/internal/timeutil"
)

// MockSerialPort is a mock implementation of serial.Port for testing.
type MockSerialPort struct {
	readData    []byte
	writtenData []byte
	readError   error
	closed      bool
}

func (m *MockSerialPort) Break(time.Duration) error                            { return nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }

func (m *MockSerialPort) Read(p []byte) (int, error) {
	if m.readError != nil {
		return 0, m.readError
	}
	if len(m.readData) == 0 {
		// Block as a real idle port would.
		time.Sleep(10 * time.Millisecond)
		return 0, nil
	}
	n := copy(p, m.readData)
	m.readData = m.readData[n:]
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.writtenData = append(m.writtenData, p...)
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

func receiveSample(t *testing.T, src *SerialSource) Sample {
	t.Helper()
	select {
	case s, ok := <-src.Samples():
		if !ok {
			t.Fatal("sample channel closed unexpectedly")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
	return Sample{}
}

func TestSerialSourceParsesLines(t *testing.T) {
	mockPort := &MockSerialPort{
		readData: []byte("0.1,0.2,9.8\n-1.5,2.5,9.7\n"),
	}
	src := NewSerialSourceFromPort(mockPort, timeutil.RealClock{})
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	first := receiveSample(t, src)
	if first.X != 0.1 || first.Y != 0.2 || first.Z != 9.8 {
		t.Errorf("first sample = %+v, want (0.1, 0.2, 9.8)", first)
	}

	second := receiveSample(t, src)
	if second.X != -1.5 || second.Y != 2.5 || second.Z != 9.7 {
		t.Errorf("second sample = %+v, want (-1.5, 2.5, 9.7)", second)
	}
}

func TestSerialSourceReportsParseErrors(t *testing.T) {
	mockPort := &MockSerialPort{
		readData: []byte("garbage line\n1,2,3\n"),
	}
	src := NewSerialSourceFromPort(mockPort, timeutil.RealClock{})
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	// The bad line surfaces on the error channel; the good line still
	// arrives — a malformed line never kills the source.
	sample := receiveSample(t, src)
	if sample.X != 1 || sample.Y != 2 || sample.Z != 3 {
		t.Errorf("sample = %+v, want (1, 2, 3)", sample)
	}

	select {
	case err := <-src.Errors():
		if err == nil {
			t.Error("expected parse error, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for parse error")
	}
}

func TestSerialSourceReadErrorEndsStream(t *testing.T) {
	mockPort := &MockSerialPort{
		readError: errors.New("device unplugged"),
	}
	src := NewSerialSourceFromPort(mockPort, timeutil.RealClock{})
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	select {
	case _, ok := <-src.Samples():
		if ok {
			t.Error("expected closed sample channel after read error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample channel to close")
	}

	// The error that ended the stream is reported, not swallowed.
	select {
	case err := <-src.Errors():
		if err == nil || !strings.Contains(err.Error(), "device unplugged") {
			t.Errorf("read error = %v, want the device error", err)
		}
	default:
		t.Error("read error was not reported on the error channel")
	}
}

func TestSerialSourceCloseClosesPort(t *testing.T) {
	mockPort := &MockSerialPort{}
	src := NewSerialSourceFromPort(mockPort, timeutil.RealClock{})
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !mockPort.closed {
		t.Error("underlying port not closed")
	}

	// Close is idempotent.
	if err := src.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestSerialSourceOpenIdempotent(t *testing.T) {
	mockPort := &MockSerialPort{}
	src := NewSerialSourceFromPort(mockPort, timeutil.RealClock{})
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if err := src.Open(); err != nil {
		t.Errorf("second Open failed: %v", err)
	}
}
