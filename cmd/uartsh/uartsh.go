// uartsh is an interactive console for marker-framed serial links: open a
// device, poke opcodes at it, and inspect what comes back. With -remote it
// drives the send side of a running uartmon instead of opening hardware.
package main

import (
	"flag"
	"fmt"

	"github.com/banshee-data/uartlink/internal/fsutil"
	"github.com/banshee-data/uartlink/internal/httputil"
	"github.com/banshee-data/uartlink/internal/version"
)

var (
	evalOnly    bool
	remoteURL   string
	showVersion bool
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&remoteURL, "remote", remoteURL, "Base URL of a running uartmon to send frames through.")
	flag.BoolVar(&showVersion, "version", showVersion, "Print version and exit.")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("uartsh %s\n", version.String())
		return
	}

	s := New(fsutil.OSFileSystem{})
	if remoteURL != "" {
		s.UseRemote(httputil.NewStandardClient(nil), remoteURL)
	}
	s.Run(flag.Args()...)
}
