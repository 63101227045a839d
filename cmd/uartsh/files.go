package main

import (
	"fmt"

	"github.com/abiosoft/ishell"

	uartlink "github.com/banshee-data/uartlink"
	"github.com/banshee-data/uartlink/internal/security"
)

var (
	// SendFileCmd sends a file's contents as one data frame. The file must
	// fit in a single frame; anything larger than the link's max packet
	// size is rejected.
	SendFileCmd = ishell.Cmd{
		Name: "sendfile",
		Help: "PATH (send file contents as one data frame)",
		Func: MustHaveSender(func(c *ishell.Context, send frameSender) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PATH required"))
				return
			}
			path := c.Args[0]
			if err := security.ValidateLocalPath(path); err != nil {
				c.Err(err)
				return
			}
			data, err := ShellFrom(c).FS.ReadFile(path)
			if err != nil {
				c.Err(err)
				return
			}
			if len(data) == 0 {
				c.Err(fmt.Errorf("%s is empty", path))
				return
			}
			if err := send.SendData(data); err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %d bytes from %s\n", len(data), path)
		}),
	}

	// RecvFileCmd receives one data frame of LEN payload bytes and writes
	// it to a file.
	RecvFileCmd = ishell.Cmd{
		Name: "recvfile",
		Help: "PATH LEN [TIMEOUT_MS] (receive one data frame into a file)",
		Func: MustHaveLink(func(c *ishell.Context, conn *uartlink.Conn) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("PATH and LEN required"))
				return
			}
			path := c.Args[0]
			n, err := parsePositiveInt(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("invalid LEN: %v", err))
				return
			}
			timeout, err := timeoutArg(c.Args, 2)
			if err != nil {
				c.Err(err)
				return
			}
			if err := security.ValidateLocalPath(path); err != nil {
				c.Err(err)
				return
			}
			buf := make([]byte, n)
			if err := conn.ReadDataTimeout(buf, timeout); err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).FS.WriteFile(path, buf, 0o644); err != nil {
				c.Err(err)
				return
			}
			c.Printf("wrote %d bytes to %s\n", n, path)
		}),
	}
)
