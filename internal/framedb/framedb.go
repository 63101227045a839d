// Package framedb stores captured link traffic in SQLite. Every frame that
// crosses the serial link during a capture session is recorded with its
// direction, kind, and payload so sessions can be replayed and inspected
// after the fact.
package framedb

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are stored. It matches sqlite's own
// datetime() text format so recorded_at can be compared against
// datetime('now', ...) in queries. All stored times are UTC.
const timeLayout = "2006-01-02 15:04:05.999999999"

type DB struct {
	*sql.DB
	path string
}

// NewDB opens the SQLite database at path. It does not create or migrate
// the schema; run the migrations first (see migrate.go).
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{DB: db, path: path}, nil
}

// Session describes one capture session: a single open of the serial link
// with a fixed configuration.
type Session struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	BaudRate  int       `json:"baud_rate"`
	Marker    byte      `json:"marker"`
	StartedAt time.Time `json:"started_at"`
}

// BeginSession records the start of a capture session and returns its ID.
func (db *DB) BeginSession(device string, baudRate int, marker byte) (string, error) {
	sessionID := uuid.NewString()
	startedAt := time.Now().UTC().Format(timeLayout)

	_, err := db.Exec(
		`INSERT INTO sessions (session_id, device, baud_rate, marker, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, device, baudRate, marker, startedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record session: %w", err)
	}
	return sessionID, nil
}

// Sessions returns the most recent capture sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(
		`SELECT session_id, device, baud_rate, marker, started_at
		 FROM sessions ORDER BY started_at DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s         Session
			marker    int64
			startedAt string
		)
		if err := rows.Scan(&s.SessionID, &s.Device, &s.BaudRate, &marker, &startedAt); err != nil {
			return nil, err
		}
		s.Marker = byte(marker)
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			s.StartedAt = t.UTC()
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// FrameRecord is one stored frame. Opcode is nil for data frames; Payload
// is nil for command frames.
type FrameRecord struct {
	FrameID    int64
	SessionID  string
	Direction  string
	Kind       string
	Opcode     *byte
	Payload    []byte
	Size       int
	RecordedAt time.Time
}

func (r *FrameRecord) String() string {
	if r.Opcode != nil {
		return fmt.Sprintf("Session: %s, Dir: %s, Kind: %s, Opcode: %#02x", r.SessionID, r.Direction, r.Kind, *r.Opcode)
	}
	return fmt.Sprintf("Session: %s, Dir: %s, Kind: %s, Size: %d", r.SessionID, r.Direction, r.Kind, r.Size)
}

// RecordFrame stores one frame. Size is derived from the payload.
func (db *DB) RecordFrame(rec FrameRecord) error {
	var opcode any
	if rec.Opcode != nil {
		opcode = int64(*rec.Opcode)
	}

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := db.Exec(
		`INSERT INTO frames (session_id, direction, kind, opcode, payload, size, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Direction, rec.Kind, opcode, rec.Payload,
		len(rec.Payload), recordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record frame: %w", err)
	}
	return nil
}

// RecentFrames returns the most recently recorded frames, newest first.
// A non-positive limit returns 100 frames.
func (db *DB) RecentFrames(limit int) ([]FrameRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT frame_id, session_id, direction, kind, opcode, payload, size, recorded_at
		 FROM frames ORDER BY frame_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrameRows(rows)
}

// SessionFrames returns every frame recorded for a session in the order it
// crossed the link.
func (db *DB) SessionFrames(sessionID string) ([]FrameRecord, error) {
	rows, err := db.Query(
		`SELECT frame_id, session_id, direction, kind, opcode, payload, size, recorded_at
		 FROM frames WHERE session_id = ? ORDER BY frame_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrameRows(rows)
}

func scanFrameRows(rows *sql.Rows) ([]FrameRecord, error) {
	var frames []FrameRecord
	for rows.Next() {
		var (
			rec        FrameRecord
			opcode     sql.NullInt64
			recordedAt string
		)
		if err := rows.Scan(
			&rec.FrameID,
			&rec.SessionID,
			&rec.Direction,
			&rec.Kind,
			&opcode,
			&rec.Payload,
			&rec.Size,
			&recordedAt,
		); err != nil {
			return nil, err
		}
		if opcode.Valid {
			b := byte(opcode.Int64)
			rec.Opcode = &b
		}
		if t, err := time.Parse(timeLayout, recordedAt); err == nil {
			rec.RecordedAt = t.UTC()
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// FrameAPI is the JSON shape of a recorded frame. Without it the raw
// FrameRecord would serialize payloads as base64 and opcodes as bare
// integers; the API view keeps both human readable.
type FrameAPI struct {
	FrameID    int64     `json:"frame_id"`
	SessionID  string    `json:"session_id"`
	Direction  string    `json:"direction"`
	Kind       string    `json:"kind"`
	Opcode     string    `json:"opcode,omitempty"`
	Payload    string    `json:"payload,omitempty"`
	Size       int       `json:"size"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FrameToAPI converts a stored frame to its API view. Opcodes render as
// prefixed hex ("0x42") and payloads as a hex string.
func FrameToAPI(rec FrameRecord) FrameAPI {
	view := FrameAPI{
		FrameID:    rec.FrameID,
		SessionID:  rec.SessionID,
		Direction:  rec.Direction,
		Kind:       rec.Kind,
		Size:       rec.Size,
		RecordedAt: rec.RecordedAt,
	}
	if rec.Opcode != nil {
		view.Opcode = fmt.Sprintf("%#02x", *rec.Opcode)
	}
	if len(rec.Payload) > 0 {
		view.Payload = hex.EncodeToString(rec.Payload)
	}
	return view
}

// FrameStats summarises link traffic over a window.
type FrameStats struct {
	Hours          int   `json:"hours"`
	TotalFrames    int64 `json:"total_frames"`
	CommandFrames  int64 `json:"command_frames"`
	DataFrames     int64 `json:"data_frames"`
	SentFrames     int64 `json:"sent_frames"`
	ReceivedFrames int64 `json:"received_frames"`
	PayloadBytes   int64 `json:"payload_bytes"`
}

// FrameStats aggregates frames recorded in the last N hours. A non-positive
// window means the last 24 hours.
func (db *DB) FrameStats(hours int) (FrameStats, error) {
	if hours <= 0 {
		hours = 24
	}
	stats := FrameStats{Hours: hours}

	err := db.QueryRow(
		`SELECT
			COUNT(*),
			COALESCE(SUM(kind = 'command'), 0),
			COALESCE(SUM(kind = 'data'), 0),
			COALESCE(SUM(direction = 'send'), 0),
			COALESCE(SUM(direction = 'recv'), 0),
			COALESCE(SUM(size), 0)
		 FROM frames
		 WHERE recorded_at >= datetime('now', ?)`,
		fmt.Sprintf("-%d hours", hours),
	).Scan(
		&stats.TotalFrames,
		&stats.CommandFrames,
		&stats.DataFrames,
		&stats.SentFrames,
		&stats.ReceivedFrames,
		&stats.PayloadBytes,
	)
	if err != nil {
		return FrameStats{}, err
	}

	return stats, nil
}
