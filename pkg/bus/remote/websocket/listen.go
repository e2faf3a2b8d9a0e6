package websocket

import (
	"context"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/rtlessly/RTL-CommandBus/pkg/bus/remote"
	"github.com/rtlessly/RTL-CommandBus/pkg/framework"
)

// ListenAndServe serves the bus to websocket clients connecting to addr.
func ListenAndServe(ctx context.Context, addr string, s *remote.Server) error {
	httpServer := &http.Server{
		Addr: addr,
		Handler: websocket.Handler(func(conn *websocket.Conn) {
			s.Serve(ctx, New(conn))
		}),
	}
	return framework.RunWithContextCloser(ctx, httpServer, func() error {
		err := httpServer.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
}

// Dial connects to a remote bus served over websocket.
func Dial(url, origin string) (*remote.Bus, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return remote.NewBus(New(conn)), nil
}
