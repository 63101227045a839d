package uartlink

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

var errMockPortClosed = errors.New("serial port closed")

// TestablePort is an in-memory Porter for exercising protocol logic without
// hardware. It honours SetReadTimeout the way a real port does: a negative
// timeout blocks until data arrives, zero returns immediately, and a
// positive timeout waits up to that long before the read returns (0, nil).
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer feeds Read; WriteBuffer collects Write.
	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// ReadError and WriteError fail the next matching call, then clear.
	// CloseError is handed back by Close.
	ReadError  error
	WriteError error
	CloseError error

	// ReadCalls and WriteCalls count calls since the last Reset.
	ReadCalls  int
	WriteCalls int

	closed      bool
	readTimeout time.Duration
}

// NewTestablePort creates a TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read hands out buffered bytes, waiting out the armed timeout when the
// buffer is empty. The wait polls because a cond cannot express a timed wait
// that also watches Close.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++

	if t.closed {
		return 0, errMockPortClosed
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	var expiry time.Time
	if t.readTimeout > 0 {
		expiry = time.Now().Add(t.readTimeout)
	}
	for t.ReadBuffer.Len() == 0 {
		if t.closed {
			return 0, errMockPortClosed
		}
		if t.readTimeout == 0 {
			return 0, nil
		}
		if !expiry.IsZero() && !time.Now().Before(expiry) {
			// Timer expired with no data, the real port's (0, nil).
			return 0, nil
		}
		t.mu.Unlock()
		time.Sleep(time.Millisecond)
		t.mu.Lock()
	}
	return t.ReadBuffer.Read(p)
}

// Write collects p, or fails with the injected WriteError.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.closed {
		return 0, errMockPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port closed. A reader waiting out its timeout notices on
// its next poll.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	return t.CloseError
}

// IsClosed reports whether Close has been called.
func (t *TestablePort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// SetReadTimeout arms the timeout reads wait under. It starts at zero, so
// reads on an empty fresh port return immediately rather than hanging a
// test.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.readTimeout = timeout
	return nil
}

// AddReadData queues data for subsequent reads. A reader mid-wait picks it
// up on its next poll.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}

// GetWrittenData returns everything written to the port so far.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// Reset returns the port to its fresh state so it can be reused mid-test.
func (t *TestablePort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Reset()
	t.WriteBuffer.Reset()
	t.ReadError = nil
	t.WriteError = nil
	t.CloseError = nil
	t.ReadCalls = 0
	t.WriteCalls = 0
	t.closed = false
	t.readTimeout = 0
}

// MockPortOpener hands Open a canned port or error and records every
// attempt, for use as the opener in OpenWith.
type MockPortOpener struct {
	mu sync.Mutex

	// Port is returned by Open when Err is nil.
	Port Porter
	Err  error

	// OpenCalls records every Open call in order.
	OpenCalls []OpenCall
}

// OpenCall records the arguments of one Open call.
type OpenCall struct {
	Path string
	Mode *serial.Mode
}

// NewMockPortOpener creates a MockPortOpener that returns port.
func NewMockPortOpener(port Porter) *MockPortOpener {
	return &MockPortOpener{Port: port}
}

// Open implements PortOpener; pass the method value to OpenWith.
func (f *MockPortOpener) Open(path string, mode *serial.Mode) (Porter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, OpenCall{Path: path, Mode: mode})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Port, nil
}

// LastCall returns the newest recorded call, or nil before any open.
func (f *MockPortOpener) LastCall() *OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}

// Reset clears recorded calls and the canned error.
func (f *MockPortOpener) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = nil
	f.Err = nil
}
