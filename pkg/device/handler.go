package device

import (
	"os/exec"
	"sync"

	"github.com/golang/glog"

	fx "github.com/rtlessly/RTL-CommandBus/pkg/framework"
	"github.com/rtlessly/RTL-CommandBus/pkg/listener"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

// ExecFunc runs a command line and returns its output.
type ExecFunc func(line string) ([]byte, error)

// Controller implements the stock command set of a bus device.
// Echo commands are answered inline. Command lines run in the
// background and the result is published as a deferred response
// when the listener has a deferred table, inline otherwise.
type Controller struct {
	// Exec runs CmdExecute command lines. A nil Exec rejects them.
	Exec ExecFunc
	// Loop, when set, receives execution results as events so they
	// are published from the polling goroutine.
	Loop *fx.Loop

	lock       sync.Mutex
	masterAddr byte
}

// MasterAddr returns the last announced master address, 0 when none.
func (c *Controller) MasterAddr() byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.masterAddr
}

// Start implements listener.Starter.
func (c *Controller) Start(l *listener.Listener) {
	c.lock.Lock()
	c.masterAddr = 0
	c.lock.Unlock()
	glog.V(1).Infof("device %#02x ready", l.DeviceID())
}

// HandleCommand implements listener.Handler. Malformed commands are
// dropped without a response.
func (c *Controller) HandleCommand(l *listener.Listener, cmd *protocol.Command) bool {
	switch cmd.Code {
	case protocol.CmdMasterAddress:
		m, err := protocol.MasterAddressFrom(cmd)
		if err != nil {
			return true
		}
		c.lock.Lock()
		c.masterAddr = m.Address
		c.lock.Unlock()
		glog.V(2).Infof("master at %#02x", m.Address)
	case protocol.CmdResetDevice:
		l.Begin()
	case protocol.CmdEcho:
		e, err := protocol.EchoFrom(cmd)
		if err != nil {
			return true
		}
		l.PostResponse(protocol.OK([]byte(e.Data)))
	case protocol.CmdExecute:
		e, err := protocol.ExecuteFrom(cmd)
		if err != nil {
			return true
		}
		c.execute(l, e)
	default:
		return false
	}
	return true
}

func (c *Controller) execute(l *listener.Listener, e *protocol.Execute) {
	if c.Exec == nil {
		l.PostResponse(protocol.ErrorResponse())
		return
	}
	id, err := l.DeferResponse()
	if err == listener.ErrNoDeferredTable {
		out, execErr := c.Exec(e.CommandLine)
		l.PostResponse(c.execResult(l, 0, out, execErr))
		return
	}
	if err != nil {
		l.PostResponse(protocol.Busy())
		return
	}
	l.PostResponse(protocol.Deferred(id))
	go func() {
		out, execErr := c.Exec(e.CommandLine)
		r := c.execResult(l, id, out, execErr)
		if c.Loop != nil {
			c.Loop.Post(fx.Event{ID: listener.EventResponseReady, Data: r})
			return
		}
		if err := l.PostDeferredResponse(r); err != nil {
			glog.Errorf("deferred response %d dropped: %v", id, err)
		}
	}()
}

func (c *Controller) execResult(l *listener.Listener, id byte, out []byte, err error) *protocol.Response {
	if err != nil {
		glog.Errorf("execute error: %v", err)
		return &protocol.Response{Code: protocol.ResponseError, ID: id}
	}
	if max := l.Capacity() - protocol.ResponseHeaderSize; len(out) > max {
		out = out[:max]
	}
	r := protocol.OK(out)
	r.ID = id
	return r
}

// ShellExec runs a command line with the system shell and returns its
// combined output.
func ShellExec(line string) ([]byte, error) {
	return exec.Command("/bin/sh", "-c", line).CombinedOutput()
}
