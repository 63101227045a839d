package uartlink

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Porter is the minimal serial port surface a link needs: byte I/O, close,
// and a per-read timeout. go.bug.st/serial ports satisfy it directly;
// TestablePort satisfies it for tests without hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
	// SetReadTimeout arms the timeout applied to subsequent Read calls. A
	// Read that times out returns (0, nil). Passing serial.NoTimeout
	// disables the timer so reads block until data arrives.
	SetReadTimeout(timeout time.Duration) error
}

// PortOpener opens a serial port at path configured with mode. It exists so
// tests and mock deployments can substitute fake ports for real hardware.
type PortOpener func(path string, mode *serial.Mode) (Porter, error)

// OpenPort is the default PortOpener, backed by go.bug.st/serial.
func OpenPort(path string, mode *serial.Mode) (Porter, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
