// Package api is the daemon's HTTP surface: send endpoints that inject
// frames onto the link and read endpoints over the capture log.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/framedb"
	"github.com/banshee-data/uartlink/internal/framemux"
	"github.com/banshee-data/uartlink/internal/httputil"
	"github.com/banshee-data/uartlink/internal/version"
)

// ANSI colors for the request log.
const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type Server struct {
	m       framemux.MuxInterface
	db      *framedb.DB
	cfg     uartlink.Config
	dataLen int
}

// NewServer builds the HTTP layer over an open mux and frame log. cfg is the
// normalized link configuration the daemon runs with; dataLen is the expected
// inbound data frame length (0 when the link carries command frames).
func NewServer(m framemux.MuxInterface, db *framedb.DB, cfg uartlink.Config, dataLen int) *Server {
	return &Server{
		m:       m,
		db:      db,
		cfg:     cfg,
		dataLen: dataLen,
	}
}

// statusRecorder keeps the status a handler wrote so the request log can
// report it. Flush passes through for the streaming endpoints.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// statusColor wraps code in an ANSI color by class: green 2xx, yellow 3xx,
// red 4xx and up. Anything below 200 passes through uncolored.
func statusColor(code int) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 400:
		return colorBoldRed + s + colorReset
	case code >= 300:
		return colorYellow + s + colorReset
	case code >= 200:
		return colorBoldGreen + s + colorReset
	}
	return s
}

// LoggingMiddleware writes one line per request: status, method, URI, and
// elapsed time.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %s%s%s %.2fms",
			statusColor(rec.status), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start))/float64(time.Millisecond))
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/data", s.sendDataHandler)
	mux.HandleFunc("/api/frames", s.listFrames)
	mux.HandleFunc("/api/frames/download", s.downloadSessionFrames)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/stats", s.showFrameStats)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	opcode, err := framemux.ParseOpcode(r.FormValue("opcode"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.m.SendCommand(opcode); err != nil {
		httputil.InternalServerError(w, "failed to send command frame")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status": "sent",
		"opcode": fmt.Sprintf("%#02x", opcode),
	})
}

func (s *Server) sendDataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	payload, err := framemux.ParsePayload(r.FormValue("payload"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if len(payload) == 0 {
		httputil.BadRequest(w, "payload required")
		return
	}

	if err := s.m.SendData(payload); err != nil {
		if errors.Is(err, uartlink.ErrPayloadTooLarge) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, "failed to send data frame")
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"status": "sent",
		"size":   len(payload),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]any{
		"link":       s.cfg,
		"marker_hex": fmt.Sprintf("%#02x", s.cfg.Marker),
		"data_len":   s.dataLen,
		"version":    version.Version,
		"git_sha":    version.GitSHA,
	})
}
