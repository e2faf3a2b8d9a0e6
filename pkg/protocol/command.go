package protocol

import (
	"errors"
	"io"
)

// CommandHeaderSize is the encoded size of a command header.
const CommandHeaderSize = 2

// TextFieldSize is the fixed size of the text field carried by
// CmdExecute and CmdEcho. Shorter text is NUL padded on the wire.
const TextFieldSize = 27

// Command message parse errors.
var (
	// ErrTruncated indicates the buffer is shorter than the length
	// declared by the message itself.
	ErrTruncated = errors.New("message truncated")
	// ErrBadLength indicates the declared length is not valid for the
	// message shape.
	ErrBadLength = errors.New("bad message length")
)

// Command is a decoded command message.
type Command struct {
	Code CommandCode
	Data []byte
}

// Len returns the encoded size of the command, in bytes. This is the
// value encoded in the length byte of the header.
func (c *Command) Len() int {
	return CommandHeaderSize + len(c.Data)
}

// Bytes returns encoded bytes for sending.
func (c *Command) Bytes() []byte {
	b := make([]byte, c.Len())
	b[0], b[1] = byte(c.Len()), byte(c.Code)
	copy(b[2:], c.Data)
	return b
}

// WriteTo writes encoded bytes.
func (c *Command) WriteTo(w io.Writer) (n int, err error) {
	if n, err = w.Write([]byte{byte(c.Len()), byte(c.Code)}); err != nil {
		return
	}
	if len(c.Data) > 0 {
		var n1 int
		n1, err = w.Write(c.Data)
		n += n1
	}
	return
}

// ParseCommand decodes a command message from the head of a buffer.
// The length byte of the message governs how much of the buffer is
// consumed; trailing bytes beyond the declared length are ignored.
func ParseCommand(b []byte) (*Command, error) {
	if len(b) < CommandHeaderSize {
		return nil, ErrTruncated
	}
	length := int(b[0])
	if length < CommandHeaderSize || length > 255 {
		return nil, ErrBadLength
	}
	if length > len(b) {
		return nil, ErrTruncated
	}
	cmd := &Command{Code: CommandCode(b[1])}
	if length > CommandHeaderSize {
		cmd.Data = make([]byte, length-CommandHeaderSize)
		copy(cmd.Data, b[CommandHeaderSize:length])
	}
	return cmd, nil
}

// QueryID builds a CmdQueryID command.
func QueryID() *Command {
	return &Command{Code: CmdQueryID}
}

// ResetDevice builds a CmdResetDevice command.
func ResetDevice() *Command {
	return &Command{Code: CmdResetDevice}
}

// MasterAddress is the decoded form of a CmdMasterAddress command.
type MasterAddress struct {
	// Address is the bus address of the master.
	Address byte
}

// Command encodes as a CmdMasterAddress command.
func (m *MasterAddress) Command() *Command {
	return &Command{Code: CmdMasterAddress, Data: []byte{m.Address}}
}

// MasterAddressFrom decodes a CmdMasterAddress command.
func MasterAddressFrom(c *Command) (*MasterAddress, error) {
	if len(c.Data) != 1 {
		return nil, ErrBadLength
	}
	return &MasterAddress{Address: c.Data[0]}, nil
}

// QueryResponseReady is the decoded form of a CmdQueryResponse command.
// It re-queries a device for a response that was previously deferred.
// The requester is responsible for retaining the response ID and the
// original command code from the deferred response.
type QueryResponseReady struct {
	// ResponseID identifies the deferred response being queried.
	ResponseID byte
	// Original is the command code of the request that was deferred.
	Original CommandCode
}

// Command encodes as a CmdQueryResponse command.
func (q *QueryResponseReady) Command() *Command {
	return &Command{Code: CmdQueryResponse, Data: []byte{q.ResponseID, byte(q.Original)}}
}

// QueryResponseReadyFrom decodes a CmdQueryResponse command.
func QueryResponseReadyFrom(c *Command) (*QueryResponseReady, error) {
	if len(c.Data) != 2 {
		return nil, ErrBadLength
	}
	return &QueryResponseReady{ResponseID: c.Data[0], Original: CommandCode(c.Data[1])}, nil
}

// Execute is the decoded form of a CmdExecute command.
type Execute struct {
	// RequestorAddress is the bus address to report results to.
	RequestorAddress byte
	// CommandLine is the command line to execute. At most
	// TextFieldSize-1 bytes are carried; the rest is truncated.
	CommandLine string
}

// Command encodes as a CmdExecute command.
func (e *Execute) Command() *Command {
	data := make([]byte, 1+TextFieldSize)
	data[0] = e.RequestorAddress
	copyText(data[1:], e.CommandLine)
	return &Command{Code: CmdExecute, Data: data}
}

// ExecuteFrom decodes a CmdExecute command.
func ExecuteFrom(c *Command) (*Execute, error) {
	if len(c.Data) != 1+TextFieldSize {
		return nil, ErrBadLength
	}
	return &Execute{
		RequestorAddress: c.Data[0],
		CommandLine:      textOf(c.Data[1:]),
	}, nil
}

// Echo is the decoded form of a CmdEcho command.
type Echo struct {
	// Data is the text to echo. At most TextFieldSize-1 bytes are
	// carried; the rest is truncated.
	Data string
}

// Command encodes as a CmdEcho command.
func (e *Echo) Command() *Command {
	data := make([]byte, TextFieldSize)
	copyText(data, e.Data)
	return &Command{Code: CmdEcho, Data: data}
}

// EchoFrom decodes a CmdEcho command.
func EchoFrom(c *Command) (*Echo, error) {
	if len(c.Data) != TextFieldSize {
		return nil, ErrBadLength
	}
	return &Echo{Data: textOf(c.Data)}, nil
}

// copyText copies s into a fixed NUL padded field, always leaving the
// last byte as a terminator.
func copyText(field []byte, s string) {
	for i := range field {
		field[i] = 0
	}
	n := len(s)
	if max := len(field) - 1; n > max {
		n = max
	}
	copy(field, s[:n])
}

// textOf extracts a string from a fixed NUL padded field.
func textOf(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
