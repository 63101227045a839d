package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/framemux"
)

const defaultReadTimeout = 5 * time.Second

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d must be positive", n)
	}
	return n, nil
}

// timeoutArg parses the optional TIMEOUT_MS argument at args[idx].
func timeoutArg(args []string, idx int) (time.Duration, error) {
	if len(args) <= idx {
		return defaultReadTimeout, nil
	}
	ms, err := parsePositiveInt(args[idx])
	if err != nil {
		return 0, fmt.Errorf("invalid TIMEOUT_MS: %v", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

var (
	// CmdCmd sends a command frame.
	CmdCmd = ishell.Cmd{
		Name: "cmd",
		Help: "OPCODE (hex \"0x42\" or decimal \"66\")",
		Func: MustHaveSender(func(c *ishell.Context, send frameSender) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("OPCODE required"))
				return
			}
			opcode, err := framemux.ParseOpcode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := send.SendCommand(opcode); err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent command %#02x\n", opcode)
		}),
	}

	// SendCmd sends a data frame.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "HEX (payload bytes, spaces allowed: \"de ad be ef\")",
		Func: MustHaveSender(func(c *ishell.Context, send frameSender) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX payload required"))
				return
			}
			payload, err := framemux.ParsePayload(strings.Join(c.Args, ""))
			if err != nil {
				c.Err(err)
				return
			}
			if len(payload) == 0 {
				c.Err(fmt.Errorf("empty payload"))
				return
			}
			if err := send.SendData(payload); err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %d byte data frame\n", len(payload))
		}),
	}

	// ReadCmdCmd reads one command frame from the link.
	ReadCmdCmd = ishell.Cmd{
		Name: "readcmd",
		Help: "[TIMEOUT_MS] (default 5000)",
		Func: MustHaveLink(func(c *ishell.Context, conn *uartlink.Conn) {
			timeout, err := timeoutArg(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			opcode, err := conn.ReadCommandTimeout(timeout)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("command %#02x\n", opcode)
		}),
	}

	// ReadDataCmd reads one data frame of LEN payload bytes from the link.
	ReadDataCmd = ishell.Cmd{
		Name: "readdata",
		Help: "LEN [TIMEOUT_MS]",
		Func: MustHaveLink(func(c *ishell.Context, conn *uartlink.Conn) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LEN required"))
				return
			}
			n, err := parsePositiveInt(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("invalid LEN: %v", err))
				return
			}
			timeout, err := timeoutArg(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			buf := make([]byte, n)
			if err := conn.ReadDataTimeout(buf, timeout); err != nil {
				c.Err(err)
				return
			}
			c.Println(hex.EncodeToString(buf))
		}),
	}
)
