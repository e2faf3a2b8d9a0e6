// Package stream frames remote bus packets over a byte stream such as
// a TCP connection or a serial port.
package stream

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize caps a frame's declared length. Bus frames are a few
// dozen bytes; a length beyond this means a corrupt or hostile peer
// and is rejected before any allocation.
const MaxFrameSize = 4096

// ErrFrameTooLarge indicates a frame longer than MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// headerSize is the length prefix of each frame, 4 bytes little-endian.
const headerSize = 4

// ReadWriter implements remote.PacketReadWriter. Each packet travels
// as a little-endian length prefix followed by that many bytes.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter from an io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(p, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(pkt)))
	if _, err := p.Write(header[:]); err != nil {
		return err
	}
	_, err := p.Write(pkt)
	return err
}

// Close closes the underlying stream when it supports closing.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
