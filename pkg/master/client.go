// Package master implements the controller side of the command bus:
// sending commands to a device and polling it for responses.
package master

import (
	"context"
	"fmt"
	"time"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

// BusError wraps a non-OK transaction status.
type BusError struct {
	Status bus.Status
}

// Error implements error.
func (e *BusError) Error() string {
	return fmt.Sprintf("bus: %v", e.Status)
}

// Client talks to one device on a bus. A device answers a command only
// after its own poll loop has run, and may answer BUSY or DEFERRED, so
// every exchange here is a send followed by polling for the response;
// retry and give-up policy belongs to the caller's context deadline.
type Client struct {
	Bus  bus.Bus
	Addr byte

	// PollInterval is the delay between response polls.
	PollInterval time.Duration
	// RetryInterval is the back-off after a refused (busy) send or a
	// not-yet-ready deferred response.
	RetryInterval time.Duration
	// ResponseSize is the response read window, defaulting to
	// protocol.DefaultBufferSize.
	ResponseSize int
}

// Default client intervals.
const (
	DefaultPollInterval  = 2 * time.Millisecond
	DefaultRetryInterval = 10 * time.Millisecond
)

// NewClient creates a Client for the device at addr.
func NewClient(b bus.Bus, addr byte) *Client {
	return &Client{
		Bus:           b,
		Addr:          addr,
		PollInterval:  DefaultPollInterval,
		RetryInterval: DefaultRetryInterval,
		ResponseSize:  protocol.DefaultBufferSize,
	}
}

// Send delivers a command with no response expected.
func (c *Client) Send(cmd *protocol.Command) error {
	if status := bus.Send(c.Bus, c.Addr, cmd.Bytes()); status != bus.StatusOK {
		return &BusError{Status: status}
	}
	return nil
}

// Broadcast delivers a command to every device on the bus.
func Broadcast(b bus.Bus, cmd *protocol.Command) error {
	if status := bus.Send(b, bus.BroadcastAddr, cmd.Bytes()); status != bus.StatusOK {
		return &BusError{Status: status}
	}
	return nil
}

// Do sends a command and polls until the device produces a final
// response. A refused send (device busy) is retried, a NOT_READY poll
// is repeated, and a DEFERRED response is transparently re-queried,
// all until ctx expires.
func (c *Client) Do(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	if err := c.sendRetry(ctx, cmd); err != nil {
		return nil, err
	}
	resp, err := c.AwaitResponse(ctx)
	if err != nil {
		return nil, err
	}
	if resp.Code == protocol.ResponseDeferred {
		return c.QueryDeferred(ctx, resp.ID, cmd.Code)
	}
	return resp, nil
}

// QueryDeferred re-queries the device for a deferred response until it
// is ready or ctx expires. The response ID and original command code
// come from the ResponseDeferred reply being followed up.
func (c *Client) QueryDeferred(ctx context.Context, id byte, original protocol.CommandCode) (*protocol.Response, error) {
	query := (&protocol.QueryResponseReady{ResponseID: id, Original: original}).Command()
	for {
		if err := c.sendRetry(ctx, query); err != nil {
			return nil, err
		}
		resp, err := c.AwaitResponse(ctx)
		if err != nil {
			return nil, err
		}
		// NOT_READY echoing the queried ID means the deferred work has
		// not completed; anything else is the answer.
		if resp.Code != protocol.ResponseNotReady {
			return resp, nil
		}
		if err := sleep(ctx, c.retryInterval()); err != nil {
			return nil, err
		}
	}
}

// AwaitResponse polls the device until a response is retrieved. A
// NOT_READY placeholder with a zero response ID only means the device
// has not buffered a response yet and is polled through.
func (c *Client) AwaitResponse(ctx context.Context) (*protocol.Response, error) {
	size := c.ResponseSize
	if size == 0 {
		size = protocol.DefaultBufferSize
	}
	buf := make([]byte, size)
	for {
		n, status := bus.Request(c.Bus, c.Addr, buf)
		if status == bus.StatusOK {
			resp, err := protocol.ParseResponse(buf[:n])
			if err == nil && !(resp.Code == protocol.ResponseNotReady && resp.ID == 0) {
				return resp, nil
			}
		} else if status == bus.StatusAddrNACK {
			return nil, &BusError{Status: status}
		}
		if err := sleep(ctx, c.pollInterval()); err != nil {
			return nil, err
		}
	}
}

func (c *Client) sendRetry(ctx context.Context, cmd *protocol.Command) error {
	encoded := cmd.Bytes()
	for {
		switch status := bus.Send(c.Bus, c.Addr, encoded); status {
		case bus.StatusOK:
			return nil
		case bus.StatusDataNACK:
			// Device refused the command (its slot is occupied): back
			// off and re-send.
			if err := sleep(ctx, c.retryInterval()); err != nil {
				return err
			}
		default:
			return &BusError{Status: status}
		}
	}
}

// QueryID queries the device identity.
func (c *Client) QueryID(ctx context.Context) (byte, error) {
	resp, err := c.Do(ctx, protocol.QueryID())
	if err != nil {
		return 0, err
	}
	return protocol.IdentityFrom(resp)
}

// EchoString asks the device to echo text back.
func (c *Client) EchoString(ctx context.Context, text string) (string, error) {
	resp, err := c.Do(ctx, (&protocol.Echo{Data: text}).Command())
	if err != nil {
		return "", err
	}
	if resp.Code != protocol.ResponseOK {
		return "", &ResponseError{Code: resp.Code}
	}
	return string(resp.Data), nil
}

// ExecuteLine asks the device to execute a command line, reporting to
// requestor.
func (c *Client) ExecuteLine(ctx context.Context, requestor byte, line string) (*protocol.Response, error) {
	cmd := (&protocol.Execute{RequestorAddress: requestor, CommandLine: line}).Command()
	return c.Do(ctx, cmd)
}

// Reset commands the device to reset. No response is expected.
func (c *Client) Reset() error {
	return c.Send(protocol.ResetDevice())
}

// AnnounceMaster broadcasts the master's address to every device.
func AnnounceMaster(b bus.Bus, addr byte) error {
	return Broadcast(b, (&protocol.MasterAddress{Address: addr}).Command())
}

// ResponseError wraps a non-OK response code.
type ResponseError struct {
	Code protocol.ResponseCode
}

// Error implements error.
func (e *ResponseError) Error() string {
	switch e.Code {
	case protocol.ResponseBusy:
		return "device busy"
	case protocol.ResponseError:
		return "command failed"
	case protocol.ResponseUnknown:
		return "command not recognized"
	}
	return fmt.Sprintf("response error %d", byte(e.Code))
}

func (c *Client) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return DefaultPollInterval
}

func (c *Client) retryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return DefaultRetryInterval
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
