package remote

import (
	"context"
	"net"

	"github.com/golang/glog"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote/stream"
	"github.com/rtlessly/RTL-CommandBus/pkg/framework"
)

// ListenAndServe accepts stream connections and serves the bus on each.
func (s *Server) ListenAndServe(ctx context.Context, network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	return framework.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.V(1).Infof("bus connection from %v", conn.RemoteAddr())
			go func(conn net.Conn) {
				if err := s.Serve(ctx, stream.New(conn)); err != nil && err != context.Canceled {
					glog.Errorf("bus connection %v: %v", conn.RemoteAddr(), err)
				}
			}(conn)
		}
	})
}

// DialBus connects to a remote bus served by ListenAndServe.
func DialBus(network, addr string) (*Bus, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return NewBus(stream.New(conn)), nil
}

// serveRunnable adapts a Server with a fixed transport to
// framework.Runnable.
type serveRunnable struct {
	server *Server
	rw     PacketReadWriter
	name   string
}

// ServeRunnable wraps Serve on a fixed transport as a named Runnable.
func ServeRunnable(name string, s *Server, rw PacketReadWriter) framework.Runnable {
	return &serveRunnable{server: s, rw: rw, name: name}
}

// Name implements framework.Named.
func (r *serveRunnable) Name() string {
	return r.name
}

// Run implements framework.Runnable.
func (r *serveRunnable) Run(ctx context.Context) error {
	return r.server.Serve(ctx, r.rw)
}
