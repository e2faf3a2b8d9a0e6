package sh

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus"
	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote"
	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote/mqtt"
	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote/websocket"
	"github.com/rtlessly/RTL-CommandBus/pkg/master"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	MasterAddr  byte

	Shell *ishell.Shell
	Conn  *Conn
}

// Conn is an open connection to a remote bus.
type Conn struct {
	Target string
	Bus    bus.Bus
	Client *master.Client

	cancel func()
	closer io.Closer
}

// Close shuts the connection down.
func (c *Conn) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.closer != nil {
		c.closer.Close()
	}
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "

	cmdTimeout = 3 * time.Second
)

var (
	// flags

	evalOnly   bool
	busURL     string
	deviceName string
	busAddr    uint
	masterAddr uint

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&busURL, "bus", busURL, "Bus URL to connect, e.g. tcp://host:port, ws://host:port/bus, mqtt://host:port/prefix")
	flag.StringVar(&deviceName, "name", deviceName, "Device name, required for MQTT bus URLs.")
	flag.UintVar(&busAddr, "addr", 0x10, "Bus address of the target device.")
	flag.UintVar(&masterAddr, "master", 0x01, "Bus address this master reports as.")
	if val := os.Getenv("CMDBUS_URL"); val != "" {
		busURL = val
	}
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		MasterAddr:  byte(masterAddr),
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Connect connects to a bus by URL and targets the device at addr.
func (s *Shell) Connect(target string, addr byte) error {
	parsedURL, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid bus URL: %v", err)
	}
	conn := &Conn{Target: target}
	switch parsedURL.Scheme {
	case "tcp":
		conn.Bus, err = remote.DialBus("tcp", parsedURL.Host)
		if err != nil {
			return err
		}
		conn.closer = conn.Bus.(io.Closer)
	case "ws", "wss":
		conn.Bus, err = websocket.Dial(target, "http://"+parsedURL.Host+"/")
		if err != nil {
			return err
		}
		conn.closer = conn.Bus.(io.Closer)
	case "mqtt":
		if deviceName == "" {
			return fmt.Errorf("device name required for MQTT, use -name")
		}
		q, err := mqtt.NewQueueFromURL(target)
		if err != nil {
			return err
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		rw := mqtt.NewPacketReadWriter(q).ForMaster(deviceName)
		ctx, cancel := context.WithCancel(context.Background())
		go rw.Run(ctx)
		conn.Bus, conn.cancel, conn.closer = remote.NewBus(rw), cancel, q
	default:
		return fmt.Errorf("unknown bus URL scheme: %q", parsedURL.Scheme)
	}
	conn.Client = master.NewClient(conn.Bus, addr)
	if s.Conn != nil {
		s.Conn.Close()
	}
	s.Conn = conn
	s.setPrompt()
	return nil
}

// Disconnect disconnects the current bus.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Target switches the target device address on the current connection.
func (s *Shell) Target(addr byte) {
	s.Conn.Client.Addr = addr
	s.setPrompt()
}

func (s *Shell) setPrompt() {
	s.Shell.SetPrompt(fmt.Sprintf("%s @%#02x > ", s.Conn.Target, s.Conn.Client.Addr))
}

// CommandCtx builds the context commands run with.
func CommandCtx() (context.Context, func()) {
	return context.WithTimeout(context.Background(), cmdTimeout)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
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

// Main is the entrance of the master shell.
func Main() {
	flag.Parse()
	s := New()
	if busURL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", busURL)
		}
		if err := s.Connect(busURL, byte(busAddr)); err != nil {
			log.Fatalf("connect %q failed: %v", busURL, err)
		}
	}
	s.Run(flag.Args()...)
}

var (
	// ConnectCmd connects a bus by URL.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL [ADDR]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			addr := byte(busAddr)
			if len(c.Args) > 1 {
				val, err := parseAddr(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				addr = val
			}
			if err := ShellFrom(c).Connect(c.Args[0], addr); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects the current bus.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)
