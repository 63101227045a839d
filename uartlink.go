// Package uartlink implements a minimal framing protocol for point-to-point
// UART links. Every frame begins with a fixed marker byte followed either by
// a single opcode (a command frame) or by a payload whose length both ends
// agree on out of band (a data frame). Nothing on the wire encodes a length;
// readers synchronize by discarding bytes until the marker appears, which
// bounds the damage from line noise or a mid-stream attach to the frames the
// noise actually corrupted.
//
// A Conn performs blocking I/O on the calling goroutine and holds no locks.
// Timeouts come from the port's own read timer, never from watchdog
// goroutines, so a Conn is safe to use from exactly one goroutine at a time.
// Callers that need fan-out or concurrent senders should wrap a Conn in
// internal/framemux, which serializes access.
package uartlink

import (
	"errors"
	"fmt"
)

// Conn is an open framing link over one serial device. The zero value is not
// usable; obtain a Conn from Open or OpenWith.
type Conn struct {
	port   Porter
	config Config
	closed bool
}

// Open opens the serial device described by cfg and applies its line
// parameters. Configuration problems wrap ErrConfiguration; failures to open
// or configure the device wrap ErrDeviceUnavailable.
func Open(cfg Config) (*Conn, error) {
	return OpenWith(cfg, OpenPort)
}

// OpenWith is Open with an injectable port opener.
func OpenWith(cfg Config, opener PortOpener) (*Conn, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	port, err := opener(cfg.Device, mode)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, cfg.Device, err)
	}

	return &Conn{port: port, config: cfg}, nil
}

// Config returns the normalized configuration the link was opened with.
func (c *Conn) Config() Config {
	return c.config
}

// Close releases the underlying port. Closing a link that is already closed
// or was never opened is a no-op. After Close every send and read fails with
// ErrClosed.
func (c *Conn) Close() error {
	if c == nil || c.port == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}

// ready gates every send and read so operations on an unopened or closed
// link fail the same way each time.
func (c *Conn) ready() error {
	if c == nil || c.port == nil || c.closed {
		return ErrClosed
	}
	return nil
}
