package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// packetBacklog is how many received packets may wait for the bus
// reader before deliveries are dropped.
const packetBacklog = 16

// ReadWriter implements remote.PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	lock     sync.Mutex
	closed   bool
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, packetBacklog)}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForMaster sets topics using the default convention for the master
// side of a device named name:
// SubTopic = name/rsp
// PubTopic = name/cmd
func (p *ReadWriter) ForMaster(name string) *ReadWriter {
	return p.WithTopics(name+"/rsp", name+"/cmd")
}

// ForDevice sets topics using the default convention for the device
// side:
// SubTopic = name/cmd
// PubTopic = name/rsp
func (p *ReadWriter) ForDevice(name string) *ReadWriter {
	return p.WithTopics(name+"/cmd", name+"/rsp")
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	pkt, ok := <-p.packetCh
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run subscribes and pumps received packets until the context is done.
// It implements framework.Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	token := p.Queue.Sub(p.SubTopic, p.handleMsg)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	<-ctx.Done()
	// Unsubscribe and wait for the broker ack before closing, so no
	// delivery still in flight can hit a closed channel.
	p.Queue.Unsub(p.SubTopic).Wait()
	p.close()
	return ctx.Err()
}

// close marks the ReadWriter drained and wakes pending ReadPacket
// calls. handleMsg calls arriving later are dropped.
func (p *ReadWriter) close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.packetCh)
}

// handleMsg hands a broker delivery to the bus reader. It runs on the
// MQTT client's dispatch goroutine, so it never blocks: when the
// backlog is full the packet is dropped and the peer's reply timeout
// takes care of the rest.
func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	select {
	case p.packetCh <- payload:
	default:
		glog.Warningf("dropping packet on %q, reader backlog full", p.SubTopic)
	}
}
