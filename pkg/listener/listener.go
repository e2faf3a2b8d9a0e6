package listener

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/rtlessly/RTL-CommandBus/pkg/framework"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

// Handler handles decoded commands. It is consulted before the built-in
// dispatch; returning true marks the command as handled.
type Handler interface {
	HandleCommand(l *Listener, cmd *protocol.Command) bool
}

// HandleCommandFunc is the func form of Handler.
type HandleCommandFunc func(*Listener, *protocol.Command) bool

// HandleCommand implements Handler.
func (f HandleCommandFunc) HandleCommand(l *Listener, cmd *protocol.Command) bool {
	return f(l, cmd)
}

// Starter is an optional hook on a Handler, invoked by Begin after the
// slots are cleared.
type Starter interface {
	Start(l *Listener)
}

// EventResponseReady is the event ID carrying a *protocol.Response that
// completed asynchronously and should be buffered as a deferred
// response.
const EventResponseReady uint32 = 0x0101

// Listener is the command dispatch engine of a slave device.
type Listener struct {
	// Handler extends the built-in dispatch. May be nil.
	Handler Handler

	deviceID     byte
	capacity     int
	deferredSize int

	lock        sync.Mutex
	cmdBuf      []byte
	cmdLen      int
	cmdPending  bool
	respBuf     []byte
	respLen     int
	respPending bool

	scratch  []byte // poll side copy-out buffer, poll loop only
	notReady []byte // static encoding for the empty response slot

	deferred *deferredTable
}

// Option configures a Listener.
type Option func(*Listener)

// WithCapacity sets the capacity, in bytes, of the command and response
// buffers. Commands declaring a larger length are rejected outright.
func WithCapacity(n int) Option {
	return func(l *Listener) { l.capacity = n }
}

// WithDeferredTable enables deferred responses with a fixed capacity
// table of n entries.
func WithDeferredTable(n int) Option {
	return func(l *Listener) { l.deferredSize = n }
}

// New creates a Listener for a device identified by deviceID. Begin
// must be called before the listener is attached to a bus.
func New(deviceID byte, opts ...Option) *Listener {
	l := &Listener{deviceID: deviceID, capacity: protocol.DefaultBufferSize}
	for _, opt := range opts {
		opt(l)
	}
	l.cmdBuf = make([]byte, l.capacity)
	l.respBuf = make([]byte, l.capacity)
	l.scratch = make([]byte, l.capacity)
	l.notReady = protocol.NotReady().Bytes()
	if l.deferredSize > 0 {
		l.deferred = newDeferredTable(l.deferredSize, l.capacity)
	}
	return l
}

// DeviceID returns the configured device identity.
func (l *Listener) DeviceID() byte {
	return l.deviceID
}

// Capacity returns the slot capacity in bytes.
func (l *Listener) Capacity() int {
	return l.capacity
}

// Begin clears both slots and invokes the handler's Start hook if it
// has one. Calling Begin again is equivalent to a reset.
func (l *Listener) Begin() {
	l.lock.Lock()
	l.cmdPending, l.respPending = false, false
	l.lock.Unlock()
	if l.deferred != nil {
		l.deferred.reset()
	}
	if s, ok := l.Handler.(Starter); ok {
		s.Start(l)
	}
}

// Receive stages raw command bytes as the pending command. It is the
// receive path of the bus transport and may be invoked from an
// asynchronous delivery callback: the work is bounded to a length
// check, a flag check and one copy.
//
// The length byte of the message governs how many bytes are staged;
// bytes beyond it are ignored. ErrBusy is returned when a command is
// already pending (the pending command is untouched), ErrOverflow when
// the declared length exceeds the buffer capacity (nothing is copied).
func (l *Listener) Receive(raw []byte) error {
	if len(raw) < protocol.CommandHeaderSize {
		return protocol.ErrTruncated
	}
	length := int(raw[0])
	if length < protocol.CommandHeaderSize {
		return protocol.ErrBadLength
	}
	if length > len(raw) {
		return protocol.ErrTruncated
	}
	if length > l.capacity {
		return ErrOverflow
	}
	l.lock.Lock()
	if l.cmdPending {
		l.lock.Unlock()
		return ErrBusy
	}
	copy(l.cmdBuf, raw[:length])
	l.cmdLen = length
	l.cmdPending = true
	l.lock.Unlock()
	return nil
}

// Poll consumes at most one pending command, dispatching it to the
// handler outside the slot lock. It implements framework.Poller and is
// a no-op when no command is pending. This is the only place command
// codes are interpreted.
func (l *Listener) Poll(ctx context.Context) error {
	l.lock.Lock()
	if !l.cmdPending {
		l.lock.Unlock()
		return nil
	}
	n := l.cmdLen
	copy(l.scratch, l.cmdBuf[:n])
	l.cmdPending = false
	l.lock.Unlock()

	cmd, err := protocol.ParseCommand(l.scratch[:n])
	if err != nil {
		// Receive validated the length byte already; only a corrupted
		// buffer gets here.
		glog.Errorf("device %#02x: dropping unparseable command: %v", l.deviceID, err)
		return nil
	}
	l.dispatch(cmd)
	return nil
}

// dispatch routes a decoded command. The handler is consulted first;
// unhandled codes outside the built-in set are dropped silently.
func (l *Listener) dispatch(cmd *protocol.Command) {
	if h := l.Handler; h != nil && h.HandleCommand(l, cmd) {
		return
	}
	switch cmd.Code {
	case protocol.CmdQueryID:
		l.PostResponse(protocol.Identity(l.deviceID))
	case protocol.CmdQueryResponse:
		if l.deferred == nil {
			glog.V(3).Infof("device %#02x: CmdQueryResponse without deferred table", l.deviceID)
			return
		}
		q, err := protocol.QueryResponseReadyFrom(cmd)
		if err != nil {
			glog.V(2).Infof("device %#02x: malformed CmdQueryResponse: %v", l.deviceID, err)
			return
		}
		if encoded, ok := l.deferred.take(q.ResponseID); ok {
			l.postEncoded(encoded)
		} else {
			l.PostResponse(&protocol.Response{Code: protocol.ResponseNotReady, ID: q.ResponseID})
		}
	default:
		glog.V(3).Infof("device %#02x: dropping command %#02x", l.deviceID, byte(cmd.Code))
	}
}

// PostResponse buffers a response as the pending response, replacing
// any unread one. A nil response is ignored. Safe to call from handler
// code or an asynchronous callback.
func (l *Listener) PostResponse(r *protocol.Response) {
	if r == nil {
		return
	}
	l.postEncoded(r.Bytes())
}

func (l *Listener) postEncoded(encoded []byte) {
	if len(encoded) > l.capacity {
		glog.Errorf("device %#02x: dropping oversized response (%d > %d)",
			l.deviceID, len(encoded), l.capacity)
		return
	}
	l.lock.Lock()
	copy(l.respBuf, encoded)
	l.respLen = len(encoded)
	l.respPending = true
	l.lock.Unlock()
}

// DeferResponse reserves a deferred response ID. A handler that cannot
// answer a command immediately calls this, posts protocol.Deferred with
// the returned ID as the immediate response, and files the result later
// with PostDeferredResponse under the same ID.
func (l *Listener) DeferResponse() (byte, error) {
	if l.deferred == nil {
		return 0, ErrNoDeferredTable
	}
	return l.deferred.reserve()
}

// PostDeferredResponse files a completed response under the reserved ID
// carried in r.ID. The response is replayed when the master re-queries
// with CmdQueryResponse for that ID.
func (l *Listener) PostDeferredResponse(r *protocol.Response) error {
	if l.deferred == nil {
		return ErrNoDeferredTable
	}
	encoded := r.Bytes()
	if len(encoded) > l.capacity {
		return ErrOverflow
	}
	if !l.deferred.fill(r.ID, encoded) {
		return ErrUnknownResponseID
	}
	return nil
}

// Request drains the pending response, returning its encoded bytes and
// clearing the slot. When no response is pending it returns the static
// NOT_READY encoding without touching the slot. It never blocks and is
// safe to call from the transport's response-read callback.
func (l *Listener) Request() []byte {
	l.lock.Lock()
	if !l.respPending {
		l.lock.Unlock()
		// copied so a caller scribbling on the reply cannot corrupt
		// the shared encoding
		return append([]byte(nil), l.notReady...)
	}
	l.respPending = false
	encoded := make([]byte, l.respLen)
	copy(encoded, l.respBuf[:l.respLen])
	l.lock.Unlock()
	return encoded
}

// OnEvent implements framework.EventHandler. An EventResponseReady
// event carrying a *protocol.Response files the response in the
// deferred table for a later CmdQueryResponse.
func (l *Listener) OnEvent(event framework.Event) {
	if event.ID != EventResponseReady {
		return
	}
	resp, ok := event.Data.(*protocol.Response)
	if !ok {
		return
	}
	if err := l.PostDeferredResponse(resp); err != nil {
		glog.Errorf("device %#02x: dropping deferred response: %v", l.deviceID, err)
	}
}
