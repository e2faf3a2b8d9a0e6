package remote

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus"
)

// DefaultReplyTimeout bounds a frame exchange when Bus.ReplyTimeout is
// left zero.
const DefaultReplyTimeout = 5 * time.Second

// ErrReplyTimeout indicates the peer did not answer a frame in time.
var ErrReplyTimeout = errors.New("reply timeout")

// Bus is the master side of a remote bus: it implements bus.Bus over a
// packet transport connected to a Server. Each transaction is one
// frame exchange, performed synchronously under the transaction lock.
type Bus struct {
	// ReplyTimeout bounds each frame exchange. A peer that misses it
	// is considered gone and the transport is closed: a reply arriving
	// after its deadline would correlate with the wrong transaction.
	ReplyTimeout time.Duration

	rw PacketReadWriter

	lock   sync.Mutex
	txAddr byte
	txBuf  []byte
	txOpen bool
	rxBuf  []byte
	rxPos  int
}

// NewBus creates a Bus over a packet transport.
func NewBus(rw PacketReadWriter) *Bus {
	return &Bus{rw: rw}
}

// Close closes the underlying transport when it supports closing.
func (b *Bus) Close() error {
	if closer, ok := b.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// exchange writes one frame and waits for the answering frame, giving
// up after ReplyTimeout. Called with the transaction lock held.
func (b *Bus) exchange(frame []byte) ([]byte, error) {
	type result struct {
		reply []byte
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		if err := b.rw.WritePacket(frame); err != nil {
			resCh <- result{err: err}
			return
		}
		reply, err := b.rw.ReadPacket()
		resCh <- result{reply: reply, err: err}
	}()

	timeout := b.ReplyTimeout
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-resCh:
		return res.reply, res.err
	case <-timer.C:
		b.Close()
		return nil, ErrReplyTimeout
	}
}

// BeginTransmission implements bus.Bus.
func (b *Bus) BeginTransmission(addr byte) {
	b.lock.Lock()
	b.txAddr = addr
	b.txBuf = b.txBuf[:0]
	b.txOpen = true
	b.lock.Unlock()
}

// Write implements bus.Bus.
func (b *Bus) Write(p []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.txOpen {
		return 0
	}
	b.txBuf = append(b.txBuf, p...)
	return len(p)
}

// EndTransmission implements bus.Bus.
func (b *Bus) EndTransmission(sendStop bool) bus.Status {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.txOpen {
		return bus.StatusOther
	}
	b.txOpen = false
	frame, err := b.exchange(encodeFrame(opSend, b.txAddr, b.txBuf))
	if err != nil {
		glog.Errorf("remote bus send failed: %v", err)
		return bus.StatusOther
	}
	op, _, payload, err := decodeFrame(frame)
	if err != nil || op != opStatus || len(payload) != 1 {
		return bus.StatusOther
	}
	return bus.Status(payload[0])
}

// RequestFrom implements bus.Bus.
func (b *Bus) RequestFrom(addr byte, n int) int {
	if n > 255 {
		n = 255
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.rxBuf, b.rxPos = b.rxBuf[:0], 0
	frame, err := b.exchange(encodeFrame(opRequest, addr, []byte{byte(n)}))
	if err != nil {
		glog.Errorf("remote bus request failed: %v", err)
		return 0
	}
	op, _, payload, err := decodeFrame(frame)
	if err != nil || op != opReply {
		return 0
	}
	b.rxBuf = append(b.rxBuf, payload...)
	return len(b.rxBuf)
}

// Read implements bus.Bus.
func (b *Bus) Read() (byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rxPos >= len(b.rxBuf) {
		return 0, false
	}
	c := b.rxBuf[b.rxPos]
	b.rxPos++
	return c, true
}
