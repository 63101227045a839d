package framemux

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// DisabledMux stands in for the real mux when uartmon runs with
// --disable-uart: the HTTP surface stays up, sends are accepted and thrown
// away, and subscriber channels never carry a frame. Channels are still
// closed on Unsubscribe and Close so readers drain out during shutdown.
type DisabledMux struct {
	mu     sync.Mutex
	closed bool
	subs   map[string]chan Frame
}

func NewDisabledMux() *DisabledMux {
	return &DisabledMux{subs: make(map[string]chan Frame)}
}

// Subscribe hands out a channel that will never receive a frame. After
// Close it arrives already closed, so range loops end immediately.
func (d *DisabledMux) Subscribe() (string, chan Frame) {
	id := randomID()
	ch := make(chan Frame)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(ch)
		return id, ch
	}
	d.subs[id] = ch
	return id, ch
}

func (d *DisabledMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subs[id]; ok {
		delete(d.subs, id)
		close(ch)
	}
}

// SendCommand accepts and discards the opcode.
func (d *DisabledMux) SendCommand(byte) error { return nil }

// SendData accepts and discards the payload.
func (d *DisabledMux) SendData([]byte) error { return nil }

// Monitor parks until the context ends; there is no device to read.
func (d *DisabledMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for id, ch := range d.subs {
		delete(d.subs, id)
		close(ch)
	}
	return nil
}

// AttachAdminRoutes registers a marker endpoint so an operator probing
// /debug can tell the UART is deliberately off rather than broken.
func (d *DisabledMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/uart-disabled", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "uart disabled")
	})
}
