package uartlink

import "fmt"

// SendCommand writes a command frame: the marker byte followed by one opcode
// byte. Both go out in a single write so the frame cannot be split by a
// scheduling stall on this end. Any opcode value is legal, including the
// marker itself.
func (c *Conn) SendCommand(opcode byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	frame := [2]byte{c.config.Marker, opcode}
	n, err := c.port.Write(frame[:])
	if err != nil {
		return fmt.Errorf("%w: command %#02x: %v", ErrLinkWrite, opcode, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write, %d of %d bytes", ErrLinkWrite, n, len(frame))
	}
	return nil
}

// SendData writes a data frame: the marker byte followed by the payload
// verbatim. Payload bytes equal to the marker are sent as-is; the receiver
// consumes the agreed payload length without rescanning for markers.
// Payloads longer than MaxPacketSize are rejected with ErrPayloadTooLarge
// before any byte reaches the link. An empty payload sends just the marker.
func (c *Conn) SendData(payload []byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(payload) > c.config.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrPayloadTooLarge, len(payload), c.config.MaxPacketSize)
	}
	if err := c.writeAll([]byte{c.config.Marker}); err != nil {
		return err
	}
	return c.writeAll(payload)
}

// writeAll writes p in full or reports ErrLinkWrite.
func (c *Conn) writeAll(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := c.port.Write(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkWrite, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short write, %d of %d bytes", ErrLinkWrite, n, len(p))
	}
	return nil
}
