package listener

import "sync"

type deferredState int

const (
	deferredFree deferredState = iota
	deferredReserved
	deferredReady
)

// deferredEntry holds one deferred response slot.
type deferredEntry struct {
	state deferredState
	id    byte
	buf   []byte
	n     int
}

// deferredTable is a fixed capacity table of deferred responses keyed
// by response ID. An entry is reserved when a handler defers a command,
// filled when the result is ready, and taken by the dispatch of a
// later CmdQueryResponse.
type deferredTable struct {
	lock    sync.Mutex
	entries []deferredEntry
	nextID  byte
}

func newDeferredTable(size, capacity int) *deferredTable {
	t := &deferredTable{entries: make([]deferredEntry, size)}
	for i := range t.entries {
		t.entries[i].buf = make([]byte, capacity)
	}
	return t
}

func (t *deferredTable) reset() {
	t.lock.Lock()
	for i := range t.entries {
		t.entries[i].state = deferredFree
	}
	t.nextID = 0
	t.lock.Unlock()
}

// reserve claims a free entry and returns the response ID assigned to
// it. IDs cycle through 1..255; 0 is reserved for immediate responses.
func (t *deferredTable) reserve() (byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.entries {
		e := &t.entries[i]
		if e.state != deferredFree {
			continue
		}
		if t.nextID++; t.nextID == 0 {
			t.nextID = 1
		}
		e.id = t.nextID
		e.n = 0
		e.state = deferredReserved
		return e.id, nil
	}
	return 0, ErrDeferredFull
}

// fill stores the encoded response for a reserved ID.
func (t *deferredTable) fill(id byte, encoded []byte) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.entries {
		e := &t.entries[i]
		if e.state == deferredReserved && e.id == id {
			copy(e.buf, encoded)
			e.buf[2] = id
			e.n = len(encoded)
			e.state = deferredReady
			return true
		}
	}
	return false
}

// take removes and returns the encoded response with the given ID. It
// returns ok=false when the ID is unknown or the entry is reserved but
// not yet filled; a reserved entry stays reserved.
func (t *deferredTable) take(id byte) ([]byte, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.entries {
		e := &t.entries[i]
		if e.id != id || e.state == deferredFree {
			continue
		}
		if e.state == deferredReserved {
			return nil, false
		}
		e.state = deferredFree
		encoded := make([]byte, e.n)
		copy(encoded, e.buf[:e.n])
		return encoded, true
	}
	return nil, false
}
