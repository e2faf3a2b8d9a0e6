package protocol

import "io"

// ResponseHeaderSize is the encoded size of a response header.
const ResponseHeaderSize = 3

// Response is a decoded command response.
type Response struct {
	Code ResponseCode
	// ID is the responder generated response ID. It is non-zero only
	// for deferred responses and their later replays.
	ID   byte
	Data []byte
}

// Len returns the encoded size of the response, in bytes.
func (r *Response) Len() int {
	return ResponseHeaderSize + len(r.Data)
}

// Bytes returns encoded bytes for sending.
func (r *Response) Bytes() []byte {
	b := make([]byte, r.Len())
	b[0], b[1], b[2] = byte(r.Len()), byte(r.Code), r.ID
	copy(b[3:], r.Data)
	return b
}

// WriteTo writes encoded bytes.
func (r *Response) WriteTo(w io.Writer) (n int, err error) {
	if n, err = w.Write([]byte{byte(r.Len()), byte(r.Code), r.ID}); err != nil {
		return
	}
	if len(r.Data) > 0 {
		var n1 int
		n1, err = w.Write(r.Data)
		n += n1
	}
	return
}

// ParseResponse decodes a response message from the head of a buffer.
// The length byte governs how much of the buffer is consumed; trailing
// bytes beyond the declared length are ignored.
func ParseResponse(b []byte) (*Response, error) {
	if len(b) < ResponseHeaderSize {
		return nil, ErrTruncated
	}
	length := int(b[0])
	if length < ResponseHeaderSize {
		return nil, ErrBadLength
	}
	if length > len(b) {
		return nil, ErrTruncated
	}
	resp := &Response{Code: ResponseCode(b[1]), ID: b[2]}
	if length > ResponseHeaderSize {
		resp.Data = make([]byte, length-ResponseHeaderSize)
		copy(resp.Data, b[ResponseHeaderSize:length])
	}
	return resp, nil
}

// OK builds a ResponseOK response carrying data.
func OK(data []byte) *Response {
	return &Response{Code: ResponseOK, Data: data}
}

// NotReady builds a ResponseNotReady response.
func NotReady() *Response {
	return &Response{Code: ResponseNotReady}
}

// Busy builds a ResponseBusy response.
func Busy() *Response {
	return &Response{Code: ResponseBusy}
}

// ErrorResponse builds a ResponseError response.
func ErrorResponse() *Response {
	return &Response{Code: ResponseError}
}

// Unknown builds a ResponseUnknown response.
func Unknown() *Response {
	return &Response{Code: ResponseUnknown}
}

// Deferred builds a ResponseDeferred response carrying the response ID
// the requester must use to re-query later.
func Deferred(id byte) *Response {
	return &Response{Code: ResponseDeferred, ID: id}
}

// Identity builds the response to CmdQueryID carrying the device ID.
func Identity(id byte) *Response {
	return &Response{Code: ResponseOK, Data: []byte{id}}
}

// IdentityFrom extracts the device ID from a CmdQueryID response.
func IdentityFrom(r *Response) (byte, error) {
	if len(r.Data) != 1 {
		return 0, ErrBadLength
	}
	return r.Data[0], nil
}
