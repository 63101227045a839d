package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/abiosoft/ishell"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/fsutil"
	"github.com/banshee-data/uartlink/internal/httputil"
)

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var commands = []*ishell.Cmd{
	&OpenCmd,
	&CloseCmd,
	&StatusCmd,
	&CmdCmd,
	&SendCmd,
	&SendFileCmd,
	&RecvFileCmd,
	&ReadCmdCmd,
	&ReadDataCmd,
}

// frameSender is where cmd/send/sendfile deliver frames: an open local link
// or a remote daemon.
type frameSender interface {
	SendCommand(opcode byte) error
	SendData(payload []byte) error
}

// Shell provides an ishell backed interactive console over one serial link.
// The link is used from the REPL goroutine only, matching the library's
// single-owner discipline.
type Shell struct {
	Interactive bool

	Shell *ishell.Shell
	FS    fsutil.FileSystem

	// OpenLink opens the serial link. Tests swap in an opener backed by an
	// in-memory port.
	OpenLink func(uartlink.Config) (*uartlink.Conn, error)

	conn   *uartlink.Conn
	remote *remoteDaemon
}

// New creates a new shell.
func New(fsys fsutil.FileSystem) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		FS:          fsys,
		OpenLink:    uartlink.Open,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// UseRemote targets a running daemon instead of a local link.
func (s *Shell) UseRemote(client httputil.HTTPClient, baseURL string) {
	s.remote = newRemoteDaemon(client, baseURL)
	host := strings.TrimPrefix(strings.TrimPrefix(s.remote.baseURL, "https://"), "http://")
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", host))
}

// sender returns where frames go: the open link, or the remote daemon.
func (s *Shell) sender() (frameSender, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	if s.remote != nil {
		return s.remote, nil
	}
	return nil, errors.New("no link open (use 'open DEVICE [BAUD]' or run with -remote)")
}

// MustHaveSender wraps command funcs that send frames.
func MustHaveSender(fn func(c *ishell.Context, send frameSender)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		send, err := ShellFrom(c).sender()
		if err != nil {
			c.Err(err)
			return
		}
		fn(c, send)
	}
}

// MustHaveLink wraps command funcs that read from the link. Reads need a
// local open: a remote daemon owns its own reads.
func MustHaveLink(fn func(c *ishell.Context, conn *uartlink.Conn)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.conn == nil {
			if s.remote != nil {
				c.Err(errors.New("reads are not available in remote mode"))
				return
			}
			c.Err(errors.New("no link open (use 'open DEVICE [BAUD]')"))
			return
		}
		fn(c, s.conn)
	}
}

// Open opens the link and makes it the shell's current connection.
func (s *Shell) Open(device string, baud int) error {
	if s.remote != nil {
		return errors.New("open is not available in remote mode")
	}

	conn, err := s.OpenLink(uartlink.Config{Device: device, BaudRate: baud})
	if err != nil {
		return err
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", filepath.Base(conn.Config().Device)))
	return nil
}

// CloseLink closes the current link, if any.
func (s *Shell) CloseLink() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.Shell.SetPrompt(closedPrompt)
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.CloseLink()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens a serial link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "DEVICE [BAUD]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("DEVICE required"))
				return
			}
			baud := 0 // open applies the default rate
			if len(c.Args) > 1 {
				b, err := parsePositiveInt(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid BAUD: %v", err))
					return
				}
				baud = b
			}
			s := ShellFrom(c)
			if err := s.Open(c.Args[0], baud); err != nil {
				c.Err(err)
				return
			}
			cfg := s.conn.Config()
			c.Printf("opened %s @ %d baud\n", cfg.Device, cfg.BaudRate)
		},
	}

	// CloseCmd closes the current link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).CloseLink(); err != nil {
				c.Err(err)
			}
		},
	}

	// StatusCmd shows the current link state. In remote mode the daemon is
	// asked for the configuration it is actually running with.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			switch {
			case s.conn != nil:
				cfg := s.conn.Config()
				c.Printf("open %s @ %d baud (marker %#02x, max packet %d)\n",
					cfg.Device, cfg.BaudRate, cfg.Marker, cfg.MaxPacketSize)
			case s.remote != nil:
				st, err := s.remote.Status()
				if err != nil {
					c.Err(err)
					return
				}
				line := fmt.Sprintf("remote %s: %s @ %d baud (marker %#02x, max packet %d)",
					s.remote.baseURL, st.Link.Device, st.Link.BaudRate, st.Link.Marker, st.Link.MaxPacketSize)
				if st.DataLen > 0 {
					line += fmt.Sprintf(", expecting %d byte data frames", st.DataLen)
				}
				c.Println(line)
			default:
				c.Println("no link open")
			}
		},
	}
)
