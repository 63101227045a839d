package framedb

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestDB opens a fresh database in a temp dir with the real schema
// applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return d
}

func opcodePtr(b byte) *byte { return &b }

func TestBeginSession(t *testing.T) {
	d := newTestDB(t)

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		t.Errorf("session ID %q is not a UUID: %v", sessionID, err)
	}

	sessions, err := d.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	s := sessions[0]
	if s.SessionID != sessionID {
		t.Errorf("expected session ID %s, got %s", sessionID, s.SessionID)
	}
	if s.Device != "/dev/ttyUSB0" || s.BaudRate != 115200 || s.Marker != 0xAA {
		t.Errorf("unexpected session fields: %+v", s)
	}
	if time.Since(s.StartedAt) > time.Minute {
		t.Errorf("StartedAt not recent: %v", s.StartedAt)
	}
}

func TestRecordFrame_RoundTrip(t *testing.T) {
	d := newTestDB(t)

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	command := FrameRecord{
		SessionID:  sessionID,
		Direction:  "recv",
		Kind:       "command",
		Opcode:     opcodePtr(0x42),
		RecordedAt: at,
	}
	if err := d.RecordFrame(command); err != nil {
		t.Fatalf("RecordFrame command failed: %v", err)
	}

	data := FrameRecord{
		SessionID:  sessionID,
		Direction:  "send",
		Kind:       "data",
		Payload:    []byte{0xDE, 0xAD, 0xBE, 0xEF},
		RecordedAt: at.Add(time.Second),
	}
	if err := d.RecordFrame(data); err != nil {
		t.Fatalf("RecordFrame data failed: %v", err)
	}

	frames, err := d.RecentFrames(10)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}

	// Newest first: the data frame comes back before the command frame.
	gotData, gotCommand := frames[0], frames[1]
	if gotData.Kind != "data" || gotCommand.Kind != "command" {
		t.Fatalf("frames out of order: %v, %v", gotData.Kind, gotCommand.Kind)
	}

	if gotCommand.Opcode == nil || *gotCommand.Opcode != 0x42 {
		t.Errorf("expected opcode 0x42, got %v", gotCommand.Opcode)
	}
	if gotCommand.Size != 0 || len(gotCommand.Payload) != 0 {
		t.Errorf("command frame should carry no payload: %+v", gotCommand)
	}
	if !gotCommand.RecordedAt.Equal(at) {
		t.Errorf("expected recorded_at %v, got %v", at, gotCommand.RecordedAt)
	}

	if gotData.Opcode != nil {
		t.Errorf("data frame should have no opcode, got %v", *gotData.Opcode)
	}
	if gotData.Size != 4 {
		t.Errorf("expected size 4, got %d", gotData.Size)
	}
	if len(gotData.Payload) != 4 || gotData.Payload[0] != 0xDE || gotData.Payload[3] != 0xEF {
		t.Errorf("payload mismatch: %x", gotData.Payload)
	}
}

func TestRecordFrame_ZeroTimeDefaultsToNow(t *testing.T) {
	d := newTestDB(t)

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	rec := FrameRecord{SessionID: sessionID, Direction: "recv", Kind: "command", Opcode: opcodePtr(0x01)}
	if err := d.RecordFrame(rec); err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}

	frames, err := d.RecentFrames(1)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if time.Since(frames[0].RecordedAt) > time.Minute {
		t.Errorf("expected recent timestamp, got %v", frames[0].RecordedAt)
	}
}

func TestRecentFrames_Limit(t *testing.T) {
	d := newTestDB(t)

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec := FrameRecord{SessionID: sessionID, Direction: "recv", Kind: "command", Opcode: opcodePtr(byte(i))}
		if err := d.RecordFrame(rec); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", i, err)
		}
	}

	frames, err := d.RecentFrames(2)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("expected 2 frames with limit 2, got %d", len(frames))
	}
	// Most recent insert has the highest opcode.
	if frames[0].Opcode == nil || *frames[0].Opcode != 4 {
		t.Errorf("expected newest frame first, got %+v", frames[0])
	}

	all, err := d.RecentFrames(0)
	if err != nil {
		t.Fatalf("RecentFrames failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 frames with default limit, got %d", len(all))
	}
}

func TestSessionFrames(t *testing.T) {
	d := newTestDB(t)

	first, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	second, err := d.BeginSession("/dev/ttyUSB1", 57600, 0x7E)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := FrameRecord{SessionID: first, Direction: "send", Kind: "command", Opcode: opcodePtr(byte(i))}
		if err := d.RecordFrame(rec); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", i, err)
		}
	}
	if err := d.RecordFrame(FrameRecord{SessionID: second, Direction: "recv", Kind: "data", Payload: []byte{0xFF}}); err != nil {
		t.Fatalf("RecordFrame failed: %v", err)
	}

	frames, err := d.SessionFrames(first)
	if err != nil {
		t.Fatalf("SessionFrames failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames for session, got %d", len(frames))
	}
	// Export order is the order the frames crossed the link.
	for i, f := range frames {
		if f.SessionID != first {
			t.Errorf("frame %d belongs to session %s, want %s", i, f.SessionID, first)
		}
		if f.Opcode == nil || *f.Opcode != byte(i) {
			t.Errorf("frame %d out of order: %+v", i, f)
		}
	}

	empty, err := d.SessionFrames("no-such-session")
	if err != nil {
		t.Fatalf("SessionFrames failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no frames for unknown session, got %d", len(empty))
	}
}

func TestFrameStats(t *testing.T) {
	d := newTestDB(t)

	sessionID, err := d.BeginSession("/dev/ttyUSB0", 115200, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	now := time.Now()
	records := []FrameRecord{
		{SessionID: sessionID, Direction: "send", Kind: "command", Opcode: opcodePtr(0x01), RecordedAt: now},
		{SessionID: sessionID, Direction: "recv", Kind: "command", Opcode: opcodePtr(0x02), RecordedAt: now},
		{SessionID: sessionID, Direction: "recv", Kind: "data", Payload: []byte{1, 2, 3}, RecordedAt: now},
		// Outside the 24h window, must not be counted.
		{SessionID: sessionID, Direction: "recv", Kind: "data", Payload: []byte{9, 9}, RecordedAt: now.Add(-48 * time.Hour)},
	}
	for i, rec := range records {
		if err := d.RecordFrame(rec); err != nil {
			t.Fatalf("RecordFrame %d failed: %v", i, err)
		}
	}

	stats, err := d.FrameStats(24)
	if err != nil {
		t.Fatalf("FrameStats failed: %v", err)
	}

	if stats.TotalFrames != 3 {
		t.Errorf("expected 3 frames in window, got %d", stats.TotalFrames)
	}
	if stats.CommandFrames != 2 || stats.DataFrames != 1 {
		t.Errorf("unexpected kind split: %+v", stats)
	}
	if stats.SentFrames != 1 || stats.ReceivedFrames != 2 {
		t.Errorf("unexpected direction split: %+v", stats)
	}
	if stats.PayloadBytes != 3 {
		t.Errorf("expected 3 payload bytes, got %d", stats.PayloadBytes)
	}
	if stats.Hours != 24 {
		t.Errorf("expected hours 24, got %d", stats.Hours)
	}

	// Widening the window picks up the old frame too.
	wide, err := d.FrameStats(72)
	if err != nil {
		t.Fatalf("FrameStats failed: %v", err)
	}
	if wide.TotalFrames != 4 {
		t.Errorf("expected 4 frames in 72h window, got %d", wide.TotalFrames)
	}
}

func TestSessions_NewestFirst(t *testing.T) {
	d := newTestDB(t)

	// started_at has sub-second precision so back-to-back sessions keep
	// their order.
	first, err := d.BeginSession("/dev/ttyUSB0", 9600, 0xAA)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := d.BeginSession("/dev/ttyUSB1", 115200, 0x7E)
	if err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}

	sessions, err := d.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != second || sessions[1].SessionID != first {
		t.Errorf("sessions not newest first: %+v", sessions)
	}
}

func TestFrameRecordString(t *testing.T) {
	cmd := FrameRecord{SessionID: "s", Direction: "recv", Kind: "command", Opcode: opcodePtr(0x42)}
	if got := cmd.String(); got == "" {
		t.Error("expected non-empty string for command record")
	}

	data := FrameRecord{SessionID: "s", Direction: "send", Kind: "data", Size: 4}
	if got := data.String(); got == "" {
		t.Error("expected non-empty string for data record")
	}
}

func TestFrameToAPI(t *testing.T) {
	cmd := FrameToAPI(FrameRecord{FrameID: 1, SessionID: "s", Direction: "recv", Kind: "command", Opcode: opcodePtr(0x42)})
	if cmd.Opcode != "0x42" {
		t.Errorf("opcode = %q, want %q", cmd.Opcode, "0x42")
	}
	if cmd.Payload != "" {
		t.Errorf("payload = %q, want empty for command frame", cmd.Payload)
	}

	data := FrameToAPI(FrameRecord{FrameID: 2, SessionID: "s", Direction: "send", Kind: "data", Payload: []byte{0xDE, 0xAD}, Size: 2})
	if data.Payload != "dead" {
		t.Errorf("payload = %q, want %q", data.Payload, "dead")
	}
	if data.Opcode != "" {
		t.Errorf("opcode = %q, want empty for data frame", data.Opcode)
	}
	if data.Size != 2 {
		t.Errorf("size = %d, want 2", data.Size)
	}
}
