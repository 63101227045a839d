package framemux

import (
	"bytes"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tailscale.com/tsweb"

	uartlink "github.com/banshee-data/uartlink"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendFrameTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-frame.html.tmpl"))

// frameView is the JSON shape streamed to the admin tail. Payload bytes are
// hex encoded so the stream stays printable.
type frameView struct {
	Dir     string `json:"dir"`
	Kind    string `json:"kind"`
	Opcode  string `json:"opcode,omitempty"`
	Payload string `json:"payload,omitempty"`
	At      string `json:"at"`
}

func viewOf(f Frame) frameView {
	v := frameView{Dir: f.Dir, Kind: f.Kind, At: f.At.Format(time.RFC3339Nano)}
	if f.Kind == KindCommand {
		v.Opcode = fmt.Sprintf("%#02x", f.Opcode)
	} else {
		v.Payload = hex.EncodeToString(f.Payload)
	}
	return v
}

// ParseOpcode converts a form or query opcode value to a byte. Decimal
// ("66") and prefixed hex ("0x42") are both accepted.
func ParseOpcode(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid opcode %q: %v", s, err)
	}
	return byte(v), nil
}

// ParsePayload converts a hex form or query value ("deadbeef") to payload
// bytes. An empty string is a valid empty payload.
func ParsePayload(s string) ([]byte, error) {
	payload, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %v", err)
	}
	return payload, nil
}

func (m *Mux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// HTML page driving the injection and tail endpoints below.
	debug.HandleFunc("send-frame", "send a frame to the serial link", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendFrameTemplate.Execute(buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	// inject one command frame onto the link
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		opcode, err := ParseOpcode(r.FormValue("opcode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.SendCommand(opcode); err != nil {
			http.Error(w, "Failed to write command frame", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command frame %#02x to serial link", opcode))
	})

	// inject one data frame, payload given as hex
	debug.HandleSilentFunc("send-data-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload, err := ParsePayload(r.FormValue("payload"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := m.SendData(payload); err != nil {
			if errors.Is(err, uartlink.ErrPayloadTooLarge) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to write data frame", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote %d byte data frame to serial link", len(payload)))
	})

	// live tail: frames crossing the link as server-sent events, one JSON
	// object per event
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		// A comment line opens the stream before any frame arrives.
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case frame, ok := <-c:
				if !ok {
					// mux closed
					return
				}
				line, err := json.Marshal(viewOf(frame))
				if err != nil {
					continue
				}
				if _, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", line))); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// The tail page's script ships in the same embedded FS as the
		// templates.
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to read tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	})
}
