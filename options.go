package uartlink

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// Defaults applied by Normalize for any zero-valued Config field.
const (
	DefaultDevice        = "/dev/ttyUSB0"
	DefaultBaudRate      = 115200
	DefaultMarker        = 0xAA
	DefaultMaxPacketSize = 100
	DefaultBufferSize    = 1024
)

// supportedBaudRates lists the rates accepted across the platforms this
// package targets. Anything else is rejected at Normalize time instead of
// surfacing later as an obscure ioctl failure.
var supportedBaudRates = map[int]bool{
	110:    true,
	300:    true,
	600:    true,
	1200:   true,
	2400:   true,
	4800:   true,
	9600:   true,
	14400:  true,
	19200:  true,
	38400:  true,
	57600:  true,
	115200: true,
	128000: true,
	230400: true,
	256000: true,
}

// Config describes one serial link: the device to open, its line parameters,
// and the framing constants shared with the peer. Marker and MaxPacketSize
// are fixed for the lifetime of a connection and must match the remote end;
// they are agreed out of band, never negotiated on the wire. The JSON tags
// mirror the daemon's config file and API layer so a Config passes through
// both without translation.
type Config struct {
	Device        string `json:"device"`
	BaudRate      int    `json:"baud_rate"`
	DataBits      int    `json:"data_bits"`
	StopBits      int    `json:"stop_bits"`
	Parity        string `json:"parity"`
	Marker        byte   `json:"marker"`
	MaxPacketSize int    `json:"max_packet_size"`
	BufferSize    int    `json:"buffer_size"`
}

// Normalize validates the config and applies defaults for any unset values.
// Validation failures wrap ErrConfiguration.
func (c Config) Normalize() (Config, error) {
	cfg := c

	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if !supportedBaudRates[cfg.BaudRate] {
		return cfg, fmt.Errorf("%w: unsupported baud rate %d", ErrConfiguration, cfg.BaudRate)
	}

	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return cfg, fmt.Errorf("%w: invalid data bits %d, must be between 5 and 8", ErrConfiguration, cfg.DataBits)
	}

	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return cfg, fmt.Errorf("%w: invalid stop bits %d, supported values are 1 or 2", ErrConfiguration, cfg.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(cfg.Parity))
	if parity == "" {
		parity = "N"
	}
	switch parity {
	case "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return cfg, fmt.Errorf("%w: unsupported parity %q, expected N, E, or O", ErrConfiguration, cfg.Parity)
	}
	cfg.Parity = parity

	// A zero marker reads as unset. 0x00 is also what an idle or broken
	// line produces, which makes it useless as a sync byte anyway.
	if cfg.Marker == 0 {
		cfg.Marker = DefaultMarker
	}

	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.BufferSize < 1 {
		return cfg, fmt.Errorf("%w: invalid buffer size %d", ErrConfiguration, cfg.BufferSize)
	}

	if cfg.MaxPacketSize == 0 {
		cfg.MaxPacketSize = DefaultMaxPacketSize
	}
	if cfg.MaxPacketSize < 1 {
		return cfg, fmt.Errorf("%w: invalid max packet size %d", ErrConfiguration, cfg.MaxPacketSize)
	}
	if cfg.MaxPacketSize > cfg.BufferSize {
		return cfg, fmt.Errorf("%w: max packet size %d exceeds buffer size %d", ErrConfiguration, cfg.MaxPacketSize, cfg.BufferSize)
	}

	return cfg, nil
}

// Equal reports whether two configs describe the same link after
// normalization. Configs that fail to normalize compare unequal.
func (c Config) Equal(other Config) bool {
	a, errA := c.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// Mode renders the line parameters as the go.bug.st/serial Mode the port
// open call takes.
func (c Config) Mode() (*serial.Mode, error) {
	cfg, err := c.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	// serial.StopBits is not numeric: OneStopBit is 0 and the value 1 means
	// 1.5 stop bits, so the int cannot be cast directly.
	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	}

	switch cfg.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}
