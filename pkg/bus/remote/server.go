package remote

import (
	"io"
	"sync"

	"context"

	"github.com/golang/glog"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus"
	"github.com/rtlessly/RTL-CommandBus/pkg/framework"
)

// Server hosts devices behind a packet transport, answering the frames
// a remote master's Bus emits. Transactions are served one at a time,
// matching the half-duplex bus model.
type Server struct {
	lock    sync.Mutex
	devices map[byte]bus.Device
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{devices: make(map[byte]bus.Device)}
}

// Attach connects a device at an address, replacing any previous one.
func (s *Server) Attach(addr byte, dev bus.Device) *Server {
	s.lock.Lock()
	s.devices[addr] = dev
	s.lock.Unlock()
	return s
}

// Serve answers frames from rw until the context is done or the
// transport fails. A clean EOF returns nil. When rw is an io.Closer it
// is closed on cancellation to unblock the read.
func (s *Server) Serve(ctx context.Context, rw PacketReadWriter) error {
	serve := func() error {
		for {
			frame, err := rw.ReadPacket()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			if err = s.handleFrame(rw, frame); err != nil {
				return err
			}
		}
	}
	if closer, ok := rw.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, serve)
	}
	return framework.RunWithContext(ctx, serve)
}

func (s *Server) handleFrame(w PacketWriter, frame []byte) error {
	op, addr, payload, err := decodeFrame(frame)
	if err != nil {
		glog.Warningf("dropping malformed frame (%d bytes)", len(frame))
		return nil
	}
	switch op {
	case opSend:
		return w.WritePacket(encodeFrame(opStatus, addr, []byte{byte(s.deliver(addr, payload))}))
	case opRequest:
		var reply []byte
		if dev := s.device(addr); dev != nil {
			reply = dev.Request()
			if len(payload) > 0 && len(reply) > int(payload[0]) {
				reply = reply[:payload[0]]
			}
		}
		return w.WritePacket(encodeFrame(opReply, addr, reply))
	default:
		glog.Warningf("dropping frame with unexpected op %#02x", op)
		return nil
	}
}

func (s *Server) device(addr byte) bus.Device {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.devices[addr]
}

func (s *Server) deliver(addr byte, payload []byte) bus.Status {
	if addr == bus.BroadcastAddr {
		s.lock.Lock()
		devices := make([]bus.Device, 0, len(s.devices))
		for _, dev := range s.devices {
			devices = append(devices, dev)
		}
		s.lock.Unlock()
		for _, dev := range devices {
			dev.Receive(payload)
		}
		return bus.StatusOK
	}
	dev := s.device(addr)
	if dev == nil {
		return bus.StatusAddrNACK
	}
	if err := dev.Receive(payload); err != nil {
		return bus.StatusDataNACK
	}
	return bus.StatusOK
}
