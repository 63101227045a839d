// Package monitoring holds the process-wide diagnostic logger. Components
// that run on their own goroutines, like the frame mux and its recorder
// handlers, log through Logf so the daemon keeps its stderr logging while
// tests mute or capture it.
package monitoring

import "log"

// Logf writes one diagnostic line. It defaults to log.Printf and is never
// nil.
var Logf = log.Printf

// SetLogger redirects Logf. A nil f silences diagnostics entirely.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = discard
		return
	}
	Logf = f
}

func discard(string, ...interface{}) {}
