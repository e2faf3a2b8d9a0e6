package sh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/rtlessly/RTL-CommandBus/pkg/master"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

func parseAddr(s string) (byte, error) {
	val, err := strconv.ParseUint(s, 0, 8)
	if err != nil || val == 0 || val > 0x7f {
		return 0, fmt.Errorf("invalid bus address: %q", s)
	}
	return byte(val), nil
}

func printResponse(c *ishell.Context, r *protocol.Response) {
	switch r.Code {
	case protocol.ResponseOK:
		if len(r.Data) == 0 {
			c.Println("OK")
			return
		}
		c.Printf("OK %q\n", string(r.Data))
	default:
		c.Println(r.Code.String())
	}
}

var (
	// IDCmd queries the identity of the target device.
	IDCmd = ishell.Cmd{
		Name:    "id",
		Aliases: []string{"who"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			ctx, cancel := CommandCtx()
			defer cancel()
			id, err := ShellFrom(c).Conn.Client.QueryID(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%#02x\n", id)
		}),
	}

	// EchoCmd sends text to the target device and prints what comes back.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "TEXT...",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			ctx, cancel := CommandCtx()
			defer cancel()
			out, err := ShellFrom(c).Conn.Client.EchoString(ctx, strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		}),
	}

	// ExecCmd asks the target device to execute a command line.
	ExecCmd = ishell.Cmd{
		Name:    "exec",
		Aliases: []string{"x"},
		Help:    "LINE...",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LINE required"))
				return
			}
			s := ShellFrom(c)
			ctx, cancel := CommandCtx()
			defer cancel()
			r, err := s.Conn.Client.ExecuteLine(ctx, s.MasterAddr, strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			printResponse(c, r)
		}),
	}

	// ResetCmd resets the target device, or every device with "*".
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "[*]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			var err error
			if len(c.Args) > 0 && c.Args[0] == "*" {
				err = master.Broadcast(s.Conn.Bus, protocol.ResetDevice())
			} else {
				err = s.Conn.Client.Reset()
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}

	// MasterCmd announces the master's address on the bus, this
	// shell's own by default.
	MasterCmd = ishell.Cmd{
		Name: "master",
		Help: "[ADDR]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			addr := s.MasterAddr
			if len(c.Args) > 0 {
				val, err := parseAddr(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				addr = val
			}
			if err := master.AnnounceMaster(s.Conn.Bus, addr); err != nil {
				c.Err(err)
			}
		}),
	}

	// QueryCmd re-queries a deferred response by ID.
	QueryCmd = ishell.Cmd{
		Name:    "query",
		Aliases: []string{"q"},
		Help:    "ID [CODE]",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ID required"))
				return
			}
			id, err := strconv.ParseUint(c.Args[0], 0, 8)
			if err != nil || id == 0 {
				c.Err(fmt.Errorf("invalid response ID: %q", c.Args[0]))
				return
			}
			code := protocol.CmdExecute
			if len(c.Args) > 1 {
				val, err := strconv.ParseUint(c.Args[1], 0, 8)
				if err != nil {
					c.Err(fmt.Errorf("invalid command code: %q", c.Args[1]))
					return
				}
				code = protocol.CommandCode(val)
			}
			ctx, cancel := CommandCtx()
			defer cancel()
			r, err := ShellFrom(c).Conn.Client.QueryDeferred(ctx, byte(id), code)
			if err != nil {
				c.Err(err)
				return
			}
			printResponse(c, r)
		}),
	}

	// TargetCmd switches the target device address.
	TargetCmd = ishell.Cmd{
		Name:    "target",
		Aliases: []string{"t"},
		Help:    "ADDR",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDR required"))
				return
			}
			addr, err := parseAddr(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).Target(addr)
		}),
	}
)

func init() {
	AddCmds(
		&IDCmd,
		&EchoCmd,
		&ExecCmd,
		&ResetCmd,
		&MasterCmd,
		&QueryCmd,
		&TargetCmd,
	)
}
