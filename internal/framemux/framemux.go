// Package framemux provides fan-out over a single framed serial link. One
// Mux owns the link: it serializes writers, runs the read loop, and
// broadcasts every frame that crosses the wire (both directions) to
// subscribers such as the capture recorder and the live admin tail.
package framemux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/timeutil"
)

// Frame directions and kinds as stored and published.
const (
	DirSend = "send"
	DirRecv = "recv"

	KindCommand = "command"
	KindData    = "data"
)

// Frame records one framed exchange on the link.
type Frame struct {
	Dir     string    `json:"dir"`
	Kind    string    `json:"kind"`
	Opcode  byte      `json:"opcode"`
	Payload []byte    `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Link is the slice of the uartlink.Conn surface the mux drives. Reads are
// the timeout-bounded variants so the monitor loop can poll for context
// cancellation between frames.
type Link interface {
	SendCommand(opcode byte) error
	SendData(payload []byte) error
	ReadCommandTimeout(timeout time.Duration) (byte, error)
	ReadDataTimeout(buf []byte, timeout time.Duration) error
	Close() error
}

// MuxInterface is implemented by Mux and DisabledMux so the daemon and API
// layer can run without hardware attached.
type MuxInterface interface {
	// Subscribe creates a channel receiving every frame that crosses the
	// link. The returned ID identifies the channel for Unsubscribe.
	Subscribe() (string, chan Frame)
	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)
	// SendCommand writes a command frame to the link.
	SendCommand(opcode byte) error
	// SendData writes a data frame to the link.
	SendData(payload []byte) error
	// Monitor reads frames from the link and fans them out until the
	// context is cancelled or the link fails.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the link.
	Close() error

	// AttachAdminRoutes mounts debugging endpoints under /debug/. They
	// assume a private listener: localhost or the tailnet, never the
	// open internet.
	AttachAdminRoutes(*http.ServeMux)
}

// Options configures what the monitor loop reads.
type Options struct {
	// DataLen selects the frame kind Monitor expects: 0 reads command
	// frames, anything else reads data frames of exactly DataLen bytes.
	// The length is part of the out-of-band contract with the peer; the
	// wire carries no length field to learn it from.
	DataLen int

	// PollTimeout bounds each read so Monitor notices cancellation on an
	// idle line. Defaults to 250ms.
	PollTimeout time.Duration

	// Clock stamps frames. Defaults to the real clock; tests inject a
	// mock for deterministic timestamps.
	Clock timeutil.Clock
}

// Mux multiplexes a single framed link to any number of subscribers.
type Mux[T Link] struct {
	link    T
	dataLen int
	poll    time.Duration
	clock   timeutil.Clock

	subscribers  map[string]chan Frame
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// NewMux creates a Mux that owns the given link.
func NewMux[T Link](link T, opts Options) *Mux[T] {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 250 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Mux[T]{
		link:        link,
		dataLen:     opts.DataLen,
		poll:        opts.PollTimeout,
		clock:       opts.Clock,
		subscribers: make(map[string]chan Frame),
	}
}

// randomID labels a subscriber channel. Eight random bytes is plenty for a
// handful of subscribers.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *Mux[T]) Subscribe() (string, chan Frame) {
	id := randomID()
	ch := make(chan Frame)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the mux.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes a command frame and publishes it to subscribers.
// Writers are serialized so concurrent HTTP handlers cannot interleave
// frames on the wire.
func (m *Mux[T]) SendCommand(opcode byte) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if err := m.link.SendCommand(opcode); err != nil {
		return err
	}
	m.publish(Frame{Dir: DirSend, Kind: KindCommand, Opcode: opcode, At: m.clock.Now()})
	return nil
}

// SendData writes a data frame and publishes it to subscribers.
func (m *Mux[T]) SendData(payload []byte) error {
	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	if err := m.link.SendData(payload); err != nil {
		return err
	}
	frame := Frame{Dir: DirSend, Kind: KindData, Payload: append([]byte(nil), payload...), At: m.clock.Now()}
	m.publish(frame)
	return nil
}

// Monitor reads frames from the link and fans them out to subscribers until
// ctx is cancelled. Reads poll with a short timeout so an idle line never
// wedges shutdown; a link read failure ends the loop with the error.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.isClosing() {
			return nil
		}

		frame, err := m.readFrame()
		if err != nil {
			if errors.Is(err, uartlink.ErrReadTimeout) {
				continue // idle tick
			}
			if errors.Is(err, uartlink.ErrClosed) || m.isClosing() {
				// Close tore the port out from under a blocked read.
				return nil
			}
			return fmt.Errorf("monitor read: %w", err)
		}
		m.publish(frame)
	}
}

func (m *Mux[T]) readFrame() (Frame, error) {
	if m.dataLen > 0 {
		buf := make([]byte, m.dataLen)
		if err := m.link.ReadDataTimeout(buf, m.poll); err != nil {
			return Frame{}, err
		}
		return Frame{Dir: DirRecv, Kind: KindData, Payload: buf, At: m.clock.Now()}, nil
	}

	opcode, err := m.link.ReadCommandTimeout(m.poll)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Dir: DirRecv, Kind: KindCommand, Opcode: opcode, At: m.clock.Now()}, nil
}

func (m *Mux[T]) isClosing() bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	return m.closing
}

// publish delivers a frame to every subscriber without blocking; a slow
// subscriber misses frames rather than stalling the read loop. The closing
// check happens under the subscriber lock: Close sets the flag before taking
// the lock, so a channel can never be closed mid-send.
func (m *Mux[T]) publish(frame Frame) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.isClosing() {
		return
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Close closes all subscriber channels and the underlying link.
func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	if m.closing {
		m.closingMu.Unlock()
		return nil
	}
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()

	return m.link.Close()
}
