package uartlink

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// noDeadline marks a read that should block until a frame arrives.
var noDeadline = time.Time{}

// ReadCommand blocks until a command frame arrives and returns its opcode.
func (c *Conn) ReadCommand() (byte, error) {
	return c.readCommand(noDeadline)
}

// ReadCommandTimeout is ReadCommand bounded by timeout. The budget covers
// the whole operation, synchronization included: if the marker and opcode do
// not both arrive in time it returns ErrReadTimeout and the link remains
// usable. A zero or negative timeout times out immediately.
func (c *Conn) ReadCommandTimeout(timeout time.Duration) (byte, error) {
	return c.readCommand(time.Now().Add(timeout))
}

// ReadData blocks until a data frame arrives and fills buf with its payload.
// len(buf) must be the payload length agreed with the peer; the wire carries
// no length field to check it against.
func (c *Conn) ReadData(buf []byte) error {
	return c.readData(buf, noDeadline)
}

// ReadDataTimeout is ReadData bounded by timeout, under the same budget
// rules as ReadCommandTimeout. On timeout the partially filled buf must be
// discarded by the caller; the next read resynchronizes from the marker.
func (c *Conn) ReadDataTimeout(buf []byte, timeout time.Duration) error {
	return c.readData(buf, time.Now().Add(timeout))
}

func (c *Conn) readCommand(deadline time.Time) (byte, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if err := c.sync(deadline); err != nil {
		return 0, err
	}
	var opcode [1]byte
	if err := c.readFull(opcode[:], deadline); err != nil {
		return 0, err
	}
	return opcode[0], nil
}

func (c *Conn) readData(buf []byte, deadline time.Time) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(buf) > c.config.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrPayloadTooLarge, len(buf), c.config.MaxPacketSize)
	}
	if err := c.sync(deadline); err != nil {
		return err
	}
	return c.readFull(buf, deadline)
}

// sync discards bytes until the marker is seen. Anything before the marker
// is line noise or the tail of a frame this end never started reading.
func (c *Conn) sync(deadline time.Time) error {
	var b [1]byte
	for {
		if _, err := c.readChunk(b[:], deadline); err != nil {
			return err
		}
		if b[0] == c.config.Marker {
			return nil
		}
	}
}

// readFull fills p from the port under the shared deadline. Marker-valued
// bytes inside the window are payload, not frame starts.
func (c *Conn) readFull(p []byte, deadline time.Time) error {
	for off := 0; off < len(p); {
		n, err := c.readChunk(p[off:], deadline)
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

// readChunk performs one port read into p, arming the port timer with
// whatever remains of the deadline. The port signals a timer expiry by
// returning (0, nil); because drivers may also wake early with no data, the
// loop re-arms with the remaining budget until it is spent. With no deadline
// the timer is disabled and (0, nil) is retried.
func (c *Conn) readChunk(p []byte, deadline time.Time) (int, error) {
	for {
		timeout := serial.NoTimeout
		if !deadline.IsZero() {
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return 0, ErrReadTimeout
			}
		}
		if err := c.port.SetReadTimeout(timeout); err != nil {
			return 0, fmt.Errorf("%w: set read timeout: %v", ErrLinkRead, err)
		}

		n, err := c.port.Read(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLinkRead, err)
		}
		if n > 0 {
			return n, nil
		}
	}
}
