package uartlink

import "errors"

// Sentinel errors for every failure class a link operation can produce. Most
// are returned wrapped with call-site context, so callers should match them
// with errors.Is rather than direct comparison.
var (
	// ErrDeviceUnavailable reports that the serial device could not be
	// opened: missing path, insufficient permissions, or held by another
	// process.
	ErrDeviceUnavailable = errors.New("serial device unavailable")

	// ErrConfiguration reports an invalid link configuration. No I/O has
	// taken place.
	ErrConfiguration = errors.New("invalid link configuration")

	// ErrLinkWrite reports that a frame could not be written in full.
	ErrLinkWrite = errors.New("failed to write to serial link")

	// ErrLinkRead reports a read failure other than a timeout.
	ErrLinkRead = errors.New("failed to read from serial link")

	// ErrReadTimeout reports that the timeout budget elapsed before a
	// complete frame arrived. The link stays usable; the next read
	// resynchronizes from whatever bytes arrive later.
	ErrReadTimeout = errors.New("read timed out")

	// ErrPayloadTooLarge reports a payload longer than MaxPacketSize.
	// Nothing was written to the link.
	ErrPayloadTooLarge = errors.New("payload exceeds max packet size")

	// ErrClosed reports an operation on a link that is closed or was never
	// opened.
	ErrClosed = errors.New("link not open")
)
