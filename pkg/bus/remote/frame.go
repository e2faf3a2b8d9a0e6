package remote

import "errors"

// Frame ops. Every frame is [op, addr, payload...]; the server answers
// opSend with opStatus and opRequest with opReply, echoing the address.
const (
	opSend    byte = 0x01
	opRequest byte = 0x02
	opReply   byte = 0x03
	opStatus  byte = 0x04
)

// frameHeaderSize is the op and address bytes of a frame.
const frameHeaderSize = 2

// ErrBadFrame indicates a frame too short to carry a header or with an
// unexpected op.
var ErrBadFrame = errors.New("bad frame")

func encodeFrame(op, addr byte, payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0], frame[1] = op, addr
	copy(frame[frameHeaderSize:], payload)
	return frame
}

func decodeFrame(frame []byte) (op, addr byte, payload []byte, err error) {
	if len(frame) < frameHeaderSize {
		err = ErrBadFrame
		return
	}
	return frame[0], frame[1], frame[frameHeaderSize:], nil
}
