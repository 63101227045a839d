package framemux

import (
	"fmt"

	"github.com/banshee-data/uartlink/internal/framedb"
	"github.com/banshee-data/uartlink/internal/monitoring"
)

func HandleCommandFrame(d *framedb.DB, sessionID string, f Frame) error {
	monitoring.Logf("Command frame: %s opcode %#02x", f.Dir, f.Opcode)
	opcode := f.Opcode
	return d.RecordFrame(framedb.FrameRecord{
		SessionID:  sessionID,
		Direction:  f.Dir,
		Kind:       f.Kind,
		Opcode:     &opcode,
		RecordedAt: f.At,
	})
}

func HandleDataFrame(d *framedb.DB, sessionID string, f Frame) error {
	monitoring.Logf("Data frame: %s %d bytes", f.Dir, len(f.Payload))
	return d.RecordFrame(framedb.FrameRecord{
		SessionID:  sessionID,
		Direction:  f.Dir,
		Kind:       f.Kind,
		Payload:    f.Payload,
		RecordedAt: f.At,
	})
}

// HandleFrame records one frame from the mux into the capture database.
func HandleFrame(d *framedb.DB, sessionID string, f Frame) error {
	switch f.Kind {
	case KindCommand:
		if err := HandleCommandFrame(d, sessionID, f); err != nil {
			return fmt.Errorf("failed to handle command frame: %v", err)
		}
	case KindData:
		if err := HandleDataFrame(d, sessionID, f); err != nil {
			return fmt.Errorf("failed to handle data frame: %v", err)
		}
	default:
		monitoring.Logf("unknown frame kind: %q", f.Kind)
	}
	return nil
}
