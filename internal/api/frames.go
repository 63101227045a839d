package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/uartlink/internal/framedb"
	"github.com/banshee-data/uartlink/internal/httputil"
	"github.com/banshee-data/uartlink/internal/security"
)

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0 // RecentFrames applies its own default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	frames, err := s.db.RecentFrames(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve frames: %v", err))
		return
	}
	httputil.WriteJSONOK(w, apiViews(frames))
}

// apiViews converts stored frames for the wire: hex opcodes and payloads
// instead of raw numbers and base64.
func apiViews(frames []framedb.FrameRecord) []framedb.FrameAPI {
	views := make([]framedb.FrameAPI, len(frames))
	for i, f := range frames {
		views[i] = framedb.FrameToAPI(f)
	}
	return views
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showFrameStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	hours := 0 // FrameStats applies its own default
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'hours' parameter")
			return
		}
		hours = parsed
	}

	stats, err := s.db.FrameStats(hours)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve frame stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, stats)
}

// downloadSessionFrames serves a session's full capture as a JSON attachment.
// The filename embeds the session ID, sanitized because it comes straight
// from the query string.
func (s *Server) downloadSessionFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httputil.BadRequest(w, "missing 'session_id' parameter")
		return
	}

	frames, err := s.db.SessionFrames(sessionID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve session frames: %v", err))
		return
	}
	if len(frames) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no frames recorded for session %q", sessionID))
		return
	}

	body, err := json.MarshalIndent(apiViews(frames), "", "  ")
	if err != nil {
		httputil.InternalServerError(w, "failed to encode session frames")
		return
	}

	filename := fmt.Sprintf("frames-%s.json", security.SanitizeFilename(sessionID))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(body)
}
