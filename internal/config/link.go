package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/fsutil"
)

// LinkConfig is the on-disk configuration for a serial link. The schema is
// the same one /api/config serves, so a running config captured from the
// daemon can be handed back unchanged at the next start. Every field is
// optional; whatever is omitted falls back to the link defaults.
type LinkConfig struct {
	Device        *string `json:"device,omitempty"`
	BaudRate      *int    `json:"baud_rate,omitempty"`
	DataBits      *int    `json:"data_bits,omitempty"`
	StopBits      *int    `json:"stop_bits,omitempty"`
	Parity        *string `json:"parity,omitempty"`
	Marker        *string `json:"marker,omitempty"` // byte value like "0xAA" or "170"
	MaxPacketSize *int    `json:"max_packet_size,omitempty"`
	BufferSize    *int    `json:"buffer_size,omitempty"`

	// Monitor params
	DataLen     *int    `json:"data_len,omitempty"`     // expected data frame payload length; 0 means command frames
	PollTimeout *string `json:"poll_timeout,omitempty"` // duration string like "250ms"
}

// pointer helpers for building configs literally
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// maxConfigSize caps the config read. A link config is a dozen short keys;
// a file pushing this limit is the wrong file.
const maxConfigSize = 1 << 20

// LoadLinkConfig reads and validates a link config file. Only .json paths
// are accepted. A partial file is fine: omitted fields keep their defaults.
func LoadLinkConfig(fsys fsutil.FileSystem, path string) (*LinkConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must be .json, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), maxConfigSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &LinkConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseMarker parses a marker byte from its string form. Base prefixes are
// honoured, so "0xAA", "0b10101010", and "170" all work.
func parseMarker(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// Validate rejects values that could never run: unparsable or zero markers,
// non-positive poll timeouts, negative data lengths, and line parameters the
// link itself would refuse.
func (c *LinkConfig) Validate() error {
	if c.Marker != nil && *c.Marker != "" {
		marker, err := parseMarker(*c.Marker)
		if err != nil {
			return fmt.Errorf("invalid marker %q: %v", *c.Marker, err)
		}
		if marker == 0 {
			return fmt.Errorf("marker must be non-zero, got %q", *c.Marker)
		}
	}

	if c.PollTimeout != nil && *c.PollTimeout != "" {
		d, err := time.ParseDuration(*c.PollTimeout)
		if err != nil {
			return fmt.Errorf("invalid poll_timeout %q: %w", *c.PollTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_timeout must be positive, got %s", *c.PollTimeout)
		}
	}

	if c.DataLen != nil && *c.DataLen < 0 {
		return fmt.Errorf("data_len must be non-negative, got %d", *c.DataLen)
	}

	// Line parameters share their validation with the link itself.
	if _, err := c.Link().Normalize(); err != nil {
		return err
	}
	return nil
}

// GetMarker returns the marker byte, or the default when unset. Unparsable
// markers also fall back, though Validate rejects those on the load path.
func (c *LinkConfig) GetMarker() byte {
	if c.Marker == nil || *c.Marker == "" {
		return uartlink.DefaultMarker
	}
	marker, err := parseMarker(*c.Marker)
	if err != nil {
		return uartlink.DefaultMarker
	}
	return marker
}

// GetPollTimeout returns the monitor poll interval, defaulting to 250ms.
func (c *LinkConfig) GetPollTimeout() time.Duration {
	if c.PollTimeout == nil || *c.PollTimeout == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.PollTimeout)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// GetDataLen returns the expected data frame length, or 0 for command frames.
func (c *LinkConfig) GetDataLen() int {
	if c.DataLen == nil || *c.DataLen < 0 {
		return 0
	}
	return *c.DataLen
}

// Link assembles a uartlink.Config from the set fields. Unset fields are left
// zero so Normalize applies the link defaults.
func (c *LinkConfig) Link() uartlink.Config {
	var cfg uartlink.Config
	if c.Device != nil {
		cfg.Device = *c.Device
	}
	if c.BaudRate != nil {
		cfg.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		cfg.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		cfg.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		cfg.Parity = *c.Parity
	}
	if c.Marker != nil {
		cfg.Marker = c.GetMarker()
	}
	if c.MaxPacketSize != nil {
		cfg.MaxPacketSize = *c.MaxPacketSize
	}
	if c.BufferSize != nil {
		cfg.BufferSize = *c.BufferSize
	}
	return cfg
}
