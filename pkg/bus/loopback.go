package bus

import "sync"

// Loopback is an in-memory Bus connecting a master to devices attached
// by address. A transaction to BroadcastAddr is delivered to every
// device; broadcast deliveries never fail the transaction.
//
// Loopback serializes transactions with its own lock, so a single
// instance can be shared by tests and simulations, but it models a
// single-master bus: only one transaction is open at a time.
type Loopback struct {
	lock    sync.Mutex
	devices map[byte]Device

	txAddr byte
	txBuf  []byte
	txOpen bool

	rxBuf []byte
	rxPos int
}

// NewLoopback creates an empty Loopback bus.
func NewLoopback() *Loopback {
	return &Loopback{devices: make(map[byte]Device)}
}

// Attach connects a device at an address, replacing any previous one.
func (b *Loopback) Attach(addr byte, dev Device) {
	b.lock.Lock()
	b.devices[addr] = dev
	b.lock.Unlock()
}

// Detach removes the device at an address.
func (b *Loopback) Detach(addr byte) {
	b.lock.Lock()
	delete(b.devices, addr)
	b.lock.Unlock()
}

// BeginTransmission implements Bus.
func (b *Loopback) BeginTransmission(addr byte) {
	b.lock.Lock()
	b.txAddr = addr
	b.txBuf = b.txBuf[:0]
	b.txOpen = true
	b.lock.Unlock()
}

// Write implements Bus.
func (b *Loopback) Write(p []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.txOpen {
		return 0
	}
	b.txBuf = append(b.txBuf, p...)
	return len(p)
}

// EndTransmission implements Bus.
func (b *Loopback) EndTransmission(sendStop bool) Status {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.txOpen {
		return StatusOther
	}
	b.txOpen = false
	payload := make([]byte, len(b.txBuf))
	copy(payload, b.txBuf)

	if b.txAddr == BroadcastAddr {
		for _, dev := range b.devices {
			dev.Receive(payload)
		}
		return StatusOK
	}
	dev, ok := b.devices[b.txAddr]
	if !ok {
		return StatusAddrNACK
	}
	if err := dev.Receive(payload); err != nil {
		return StatusDataNACK
	}
	return StatusOK
}

// RequestFrom implements Bus.
func (b *Loopback) RequestFrom(addr byte, n int) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	dev, ok := b.devices[addr]
	if !ok {
		b.rxBuf, b.rxPos = nil, 0
		return 0
	}
	reply := dev.Request()
	if len(reply) > n {
		reply = reply[:n]
	}
	b.rxBuf = append(b.rxBuf[:0], reply...)
	b.rxPos = 0
	return len(b.rxBuf)
}

// Read implements Bus.
func (b *Loopback) Read() (byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.rxPos >= len(b.rxBuf) {
		return 0, false
	}
	c := b.rxBuf[b.rxPos]
	b.rxPos++
	return c, true
}
