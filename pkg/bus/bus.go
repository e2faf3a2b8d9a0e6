// Package bus defines the byte-oriented transport contract between a
// master controller and slave devices, and master-side helpers for
// running complete command transactions.
package bus

import "fmt"

// Status is the result of a bus transaction, mirroring I2C style
// transmission status codes.
type Status byte

// Transaction status codes.
const (
	// StatusOK indicates a successful transaction.
	StatusOK Status = 0
	// StatusDataTooLong indicates the message exceeded the transmit window.
	StatusDataTooLong Status = 1
	// StatusAddrNACK indicates no device acknowledged the address.
	StatusAddrNACK Status = 2
	// StatusDataNACK indicates the device refused the data.
	StatusDataNACK Status = 3
	// StatusOther indicates any other failure, including an empty reply
	// to a request.
	StatusOther Status = 4
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDataTooLong:
		return "data too long"
	case StatusAddrNACK:
		return "address not acknowledged"
	case StatusDataNACK:
		return "data not acknowledged"
	}
	return fmt.Sprintf("bus error %d", byte(s))
}

// BroadcastAddr is the general-call address delivered to every device
// on the bus.
const BroadcastAddr byte = 0x00

// Bus is the master-side primitive surface of a shared half-duplex bus.
// Exactly one transaction is open at a time; the sequence is
// BeginTransmission, zero or more Writes, EndTransmission, optionally
// followed by RequestFrom and Reads when the bus was held.
type Bus interface {
	// BeginTransmission opens a transaction addressed to a device.
	BeginTransmission(addr byte)
	// Write queues bytes for the open transaction and reports how many
	// were accepted.
	Write(p []byte) int
	// EndTransmission delivers the queued bytes. sendStop releases the
	// bus; passing false holds it for an immediate RequestFrom.
	EndTransmission(sendStop bool) Status
	// RequestFrom asks a device for up to n bytes and reports how many
	// arrived, available through Read.
	RequestFrom(addr byte, n int) int
	// Read consumes one received byte, reporting false when drained.
	Read() (byte, bool)
}

// Device is the slave side attached to a bus: the transport invokes
// Receive with each delivered payload and Request to drain a response.
// Both may be called from the transport's delivery callback and must
// complete in bounded time.
type Device interface {
	// Receive accepts the payload of an addressed write transaction.
	// The returned error tells the transport the payload was refused
	// (command pending, oversized); the transport reports it to the
	// master as a data NACK.
	Receive(data []byte) error
	// Request drains the device's pending response, or a NOT_READY
	// placeholder when there is none.
	Request() []byte
}

// Send runs a complete write transaction delivering msg to addr.
func Send(b Bus, addr byte, msg []byte) Status {
	b.BeginTransmission(addr)
	b.Write(msg)
	return b.EndTransmission(true)
}

// SendRequest runs a complete write transaction followed by a response
// read while the bus is held. It fills resp with up to len(resp) bytes
// and returns the count; excess reply bytes are drained and dropped.
// StatusOther is returned when the reply is empty.
func SendRequest(b Bus, addr byte, msg []byte, resp []byte) (int, Status) {
	b.BeginTransmission(addr)
	b.Write(msg)
	if status := b.EndTransmission(false); status != StatusOK {
		return 0, status
	}
	avail := b.RequestFrom(addr, len(resp))
	n := 0
	for i := 0; i < avail; i++ {
		c, ok := b.Read()
		if !ok {
			break
		}
		if n < len(resp) {
			resp[n] = c
			n++
		}
	}
	if n == 0 {
		return 0, StatusOther
	}
	return n, StatusOK
}

// Request runs a read-only transaction polling addr for a response. It
// fills resp with up to len(resp) bytes and returns the count;
// StatusOther is returned when nothing arrived.
func Request(b Bus, addr byte, resp []byte) (int, Status) {
	avail := b.RequestFrom(addr, len(resp))
	n := 0
	for i := 0; i < avail; i++ {
		c, ok := b.Read()
		if !ok {
			break
		}
		if n < len(resp) {
			resp[n] = c
			n++
		}
	}
	if n == 0 {
		return 0, StatusOther
	}
	return n, StatusOK
}
