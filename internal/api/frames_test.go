package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/uartlink/internal/framedb"
	"github.com/banshee-data/uartlink/internal/testutil"
)

func opcodePtr(b byte) *byte { return &b }

// seedSession records a session with one command and one data frame and
// returns the session ID.
func seedSession(t *testing.T, d *framedb.DB) string {
	t.Helper()

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	testutil.AssertNoError(t, err)

	now := time.Now()
	records := []framedb.FrameRecord{
		{SessionID: sessionID, Direction: "send", Kind: "command", Opcode: opcodePtr(0x42), RecordedAt: now},
		{SessionID: sessionID, Direction: "recv", Kind: "data", Payload: []byte{0xDE, 0xAD}, RecordedAt: now.Add(time.Second)},
	}
	for i, rec := range records {
		if err := d.RecordFrame(rec); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", i, err)
		}
	}
	return sessionID
}

func TestListFrames(t *testing.T) {
	server, _, d := setupTestServer(t)
	seedSession(t, d)

	w := testutil.Get(t, http.HandlerFunc(server.listFrames), "/api/frames")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}

	var frames []framedb.FrameAPI
	testutil.DecodeJSON(t, w, &frames)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	// Newest first: the data frame was recorded last.
	if frames[0].Kind != "data" || frames[0].Payload != "dead" {
		t.Errorf("newest frame = %+v, want the data frame with hex payload", frames[0])
	}
	if frames[1].Kind != "command" || frames[1].Opcode != "0x42" {
		t.Errorf("oldest frame = %+v, want the command frame", frames[1])
	}
}

func TestListFrames_Limit(t *testing.T) {
	server, _, d := setupTestServer(t)
	seedSession(t, d)

	w := testutil.Get(t, http.HandlerFunc(server.listFrames), "/api/frames?limit=1")
	testutil.AssertStatus(t, w, http.StatusOK)

	var frames []framedb.FrameAPI
	testutil.DecodeJSON(t, w, &frames)
	if len(frames) != 1 {
		t.Errorf("got %d frames with limit=1, want 1", len(frames))
	}
}

func TestListFrames_InvalidLimit(t *testing.T) {
	server, _, _ := setupTestServer(t)

	for _, limit := range []string{"zero", "-1", "0"} {
		w := testutil.Get(t, http.HandlerFunc(server.listFrames), "/api/frames?limit="+limit)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}
}

func TestListSessions(t *testing.T) {
	server, _, d := setupTestServer(t)
	sessionID := seedSession(t, d)

	w := testutil.Get(t, http.HandlerFunc(server.listSessions), "/api/sessions")
	testutil.AssertStatus(t, w, http.StatusOK)

	var sessions []framedb.Session
	testutil.DecodeJSON(t, w, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].SessionID != sessionID {
		t.Errorf("session ID = %s, want %s", sessions[0].SessionID, sessionID)
	}
	if sessions[0].Device != "/dev/ttyUSB0" {
		t.Errorf("device = %s, want /dev/ttyUSB0", sessions[0].Device)
	}
}

func TestShowFrameStats(t *testing.T) {
	server, _, d := setupTestServer(t)
	seedSession(t, d)

	w := testutil.Get(t, http.HandlerFunc(server.showFrameStats), "/api/stats?hours=24")
	testutil.AssertStatus(t, w, http.StatusOK)

	var stats framedb.FrameStats
	testutil.DecodeJSON(t, w, &stats)
	if stats.TotalFrames != 2 {
		t.Errorf("total frames = %d, want 2", stats.TotalFrames)
	}
	if stats.CommandFrames != 1 || stats.DataFrames != 1 {
		t.Errorf("command/data = %d/%d, want 1/1", stats.CommandFrames, stats.DataFrames)
	}
	if stats.PayloadBytes != 2 {
		t.Errorf("payload bytes = %d, want 2", stats.PayloadBytes)
	}
}

func TestShowFrameStats_InvalidHours(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := testutil.Get(t, http.HandlerFunc(server.showFrameStats), "/api/stats?hours=banana")
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestDownloadSessionFrames(t *testing.T) {
	server, _, d := setupTestServer(t)
	sessionID := seedSession(t, d)

	w := testutil.Get(t, http.HandlerFunc(server.downloadSessionFrames), "/api/frames/download?session_id="+sessionID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}

	disposition := w.Header().Get("Content-Disposition")
	wantFilename := fmt.Sprintf("frames-%s.json", sessionID)
	if !strings.Contains(disposition, wantFilename) {
		t.Errorf("Content-Disposition = %q, want it to name %q", disposition, wantFilename)
	}

	var frames []framedb.FrameAPI
	testutil.DecodeJSON(t, w, &frames)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	// Downloads replay the session in wire order, oldest first.
	if frames[0].Kind != "command" {
		t.Errorf("first frame kind = %s, want command", frames[0].Kind)
	}
	if frames[1].Payload != "dead" {
		t.Errorf("second frame payload = %q, want %q", frames[1].Payload, "dead")
	}
}

func TestDownloadSessionFrames_MissingParam(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := testutil.Get(t, http.HandlerFunc(server.downloadSessionFrames), "/api/frames/download")
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestDownloadSessionFrames_UnknownSession(t *testing.T) {
	server, _, _ := setupTestServer(t)

	w := testutil.Get(t, http.HandlerFunc(server.downloadSessionFrames), "/api/frames/download?session_id=nope")
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestFrameEndpoints_MethodNotAllowed(t *testing.T) {
	server, _, _ := setupTestServer(t)

	handlers := map[string]http.HandlerFunc{
		"/api/frames":          server.listFrames,
		"/api/frames/download": server.downloadSessionFrames,
		"/api/sessions":        server.listSessions,
		"/api/stats":           server.showFrameStats,
	}

	for path, handler := range handlers {
		w := testutil.Request(t, handler, http.MethodPost, path)
		testutil.AssertStatus(t, w, http.StatusMethodNotAllowed)
	}
}
