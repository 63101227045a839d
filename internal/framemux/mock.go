package framemux

import (
	"time"

	uartlink "github.com/banshee-data/uartlink"
)

// NewMockMux creates a Mux backed by an in-memory port that emits a
// synthetic frame every interval, standing in for real hardware during
// local development (--dev). The emitted frames are command frames with a
// cycling opcode, or data frames of DataLen bytes when opts.DataLen is set.
func NewMockMux(cfg uartlink.Config, interval time.Duration, opts Options) (*Mux[*uartlink.Conn], error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	port := uartlink.NewTestablePort()
	opener := &uartlink.MockPortOpener{Port: port}
	conn, err := uartlink.OpenWith(cfg, opener.Open)
	if err != nil {
		return nil, err
	}

	m := NewMux(conn, opts)
	marker := conn.Config().Marker

	// generate frames periodically to simulate device output
	go func() {
		ticker := m.clock.NewTicker(interval)
		defer ticker.Stop()
		var seq byte
		for range ticker.C() {
			if port.IsClosed() {
				return
			}
			if m.dataLen > 0 {
				frame := make([]byte, 0, m.dataLen+1)
				frame = append(frame, marker)
				for i := 0; i < m.dataLen; i++ {
					frame = append(frame, seq+byte(i))
				}
				port.AddReadData(frame)
			} else {
				port.AddReadData([]byte{marker, seq})
			}
			seq++
		}
	}()

	return m, nil
}
