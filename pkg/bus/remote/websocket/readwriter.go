// Package websocket frames remote bus packets over a websocket
// connection.
package websocket

import "golang.org/x/net/websocket"

// ReadWriter implements remote.PacketReadWriter. Each packet rides in
// one binary websocket message, so no extra framing is needed.
type ReadWriter struct {
	Conn *websocket.Conn
}

// New wraps a websocket connection.
func New(conn *websocket.Conn) *ReadWriter {
	return &ReadWriter{Conn: conn}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var pkt []byte
	if err := websocket.Message.Receive(p.Conn, &pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send(p.Conn, pkt)
}

// Close closes the connection.
func (p *ReadWriter) Close() error {
	return p.Conn.Close()
}
