package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtlessly/RTL-CommandBus/pkg/framework"
	"github.com/rtlessly/RTL-CommandBus/pkg/protocol"
)

func poll(t *testing.T, l *Listener) {
	t.Helper()
	require.NoError(t, l.Poll(context.Background()))
}

func TestQueryIDRoundTrip(t *testing.T) {
	l := New(0x07)
	l.Begin()

	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
	poll(t, l)

	require.Equal(t, []byte{4, 0x00, 0x00, 0x07}, l.Request())
}

func TestReceiveWhileBusy(t *testing.T) {
	l := New(0x09)
	l.Begin()

	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
	// Back-to-back submit without an intervening poll: rejected, and
	// the pending command survives intact.
	require.Equal(t, ErrBusy, l.Receive((&protocol.Echo{Data: "x"}).Command().Bytes()))

	poll(t, l)
	resp, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	id, err := protocol.IdentityFrom(resp)
	require.NoError(t, err)
	require.Equal(t, byte(0x09), id)
}

func TestReceiveOverflow(t *testing.T) {
	l := New(1, WithCapacity(8))
	l.Begin()

	raw := make([]byte, 16)
	raw[0], raw[1] = 16, byte(protocol.CmdEcho)
	require.Equal(t, ErrOverflow, l.Receive(raw))

	// Nothing was staged.
	poll(t, l)
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestReceiveMalformed(t *testing.T) {
	l := New(1)
	l.Begin()

	require.Equal(t, protocol.ErrTruncated, l.Receive(nil))
	require.Equal(t, protocol.ErrTruncated, l.Receive([]byte{2}))
	require.Equal(t, protocol.ErrBadLength, l.Receive([]byte{1, 0x01}))
	// Declared length beyond what was delivered.
	require.Equal(t, protocol.ErrTruncated, l.Receive([]byte{10, 0x06, 1, 2}))
}

func TestRequestWithoutResponse(t *testing.T) {
	l := New(1)
	l.Begin()

	// Zero prior activity after Begin.
	require.Equal(t, []byte{3, 0x02, 0x00}, l.Request())
}

func TestRequestEmptySlotReturnsFreshSlice(t *testing.T) {
	l := New(1)
	l.Begin()

	first := l.Request()
	for i := range first {
		first[i] = 0xff
	}
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestRequestConsumesOnce(t *testing.T) {
	l := New(0x05)
	l.Begin()

	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
	poll(t, l)

	first := l.Request()
	require.Equal(t, []byte{4, 0x00, 0x00, 0x05}, first)
	// Consumed exactly once; second read reports not ready.
	require.Equal(t, []byte{3, 0x02, 0x00}, l.Request())
}

func TestPostResponseLastWriteWins(t *testing.T) {
	l := New(1)
	l.Begin()

	l.PostResponse(protocol.OK([]byte{1}))
	l.PostResponse(protocol.OK([]byte{2}))

	resp, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, []byte{2}, resp.Data)
}

func TestPostResponseNil(t *testing.T) {
	l := New(1)
	l.Begin()
	l.PostResponse(nil)
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestUnrecognizedCommandDroppedSilently(t *testing.T) {
	l := New(1)
	l.Begin()

	require.NoError(t, l.Receive([]byte{2, 0xaa}))
	poll(t, l)

	// Consumed, but no response was ever published.
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())

	// Command slot is free again.
	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
}

func TestPollIdleIsNoOp(t *testing.T) {
	l := New(1)
	l.Begin()
	poll(t, l)
	poll(t, l)
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestBeginResetsSlots(t *testing.T) {
	l := New(1)
	l.Begin()

	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
	l.PostResponse(protocol.OK(nil))

	l.Begin()
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
	// Pending command was discarded.
	poll(t, l)
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestBeginInvokesStartHook(t *testing.T) {
	h := &startCountingHandler{}
	l := New(1)
	l.Handler = h
	l.Begin()
	l.Begin()
	require.Equal(t, 2, h.starts)
}

type startCountingHandler struct {
	starts int
}

func (h *startCountingHandler) HandleCommand(*Listener, *protocol.Command) bool { return false }
func (h *startCountingHandler) Start(*Listener)                                 { h.starts++ }

func TestHandlerOverridesAndFallsBack(t *testing.T) {
	l := New(0x21)
	l.Handler = HandleCommandFunc(func(l *Listener, cmd *protocol.Command) bool {
		if cmd.Code == protocol.CmdEcho {
			echo, err := protocol.EchoFrom(cmd)
			if err != nil {
				l.PostResponse(protocol.ErrorResponse())
				return true
			}
			l.PostResponse(protocol.OK([]byte(echo.Data)))
			return true
		}
		return false
	})
	l.Begin()

	require.NoError(t, l.Receive((&protocol.Echo{Data: "ping"}).Command().Bytes()))
	poll(t, l)
	resp, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseOK, resp.Code)
	require.Equal(t, "ping", string(resp.Data))

	// Unhandled codes still reach the built-in dispatch.
	require.NoError(t, l.Receive(protocol.QueryID().Bytes()))
	poll(t, l)
	require.Equal(t, []byte{4, 0x00, 0x00, 0x21}, l.Request())
}

func TestCommandInCapacitySizedBuffer(t *testing.T) {
	l := New(0x07)
	l.Begin()

	// The transport delivers a full window; the length byte governs.
	window := make([]byte, protocol.DefaultBufferSize)
	copy(window, protocol.QueryID().Bytes())
	window[4] = 0xff
	require.NoError(t, l.Receive(window))
	poll(t, l)
	require.Equal(t, []byte{4, 0x00, 0x00, 0x07}, l.Request())
}

func TestDeferredResponseFlow(t *testing.T) {
	l := New(1, WithDeferredTable(4))
	l.Handler = HandleCommandFunc(func(l *Listener, cmd *protocol.Command) bool {
		if cmd.Code != protocol.CmdExecute {
			return false
		}
		id, err := l.DeferResponse()
		require.NoError(t, err)
		l.PostResponse(protocol.Deferred(id))
		return true
	})
	l.Begin()

	require.NoError(t, l.Receive((&protocol.Execute{CommandLine: "slow"}).Command().Bytes()))
	poll(t, l)

	deferred, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseDeferred, deferred.Code)
	id := deferred.ID
	require.NotEqual(t, byte(0), id)

	// Re-query before the result is filed: not ready, same ID echoed.
	query := (&protocol.QueryResponseReady{ResponseID: id, Original: protocol.CmdExecute}).Command()
	require.NoError(t, l.Receive(query.Bytes()))
	poll(t, l)
	resp, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseNotReady, resp.Code)
	require.Equal(t, id, resp.ID)

	// File the result, re-query again: the stored response replays.
	require.NoError(t, l.PostDeferredResponse(&protocol.Response{
		Code: protocol.ResponseOK, ID: id, Data: []byte("done"),
	}))
	require.NoError(t, l.Receive(query.Bytes()))
	poll(t, l)
	resp, err = protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseOK, resp.Code)
	require.Equal(t, id, resp.ID)
	require.Equal(t, "done", string(resp.Data))

	// Taken exactly once.
	require.NoError(t, l.Receive(query.Bytes()))
	poll(t, l)
	resp, err = protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseNotReady, resp.Code)
}

func TestDeferredTableFull(t *testing.T) {
	l := New(1, WithDeferredTable(2))
	l.Begin()

	_, err := l.DeferResponse()
	require.NoError(t, err)
	_, err = l.DeferResponse()
	require.NoError(t, err)
	_, err = l.DeferResponse()
	require.Equal(t, ErrDeferredFull, err)
}

func TestDeferredDisabled(t *testing.T) {
	l := New(1)
	l.Begin()

	_, err := l.DeferResponse()
	require.Equal(t, ErrNoDeferredTable, err)

	// CmdQueryResponse without a table falls into the silent drop.
	query := (&protocol.QueryResponseReady{ResponseID: 1}).Command()
	require.NoError(t, l.Receive(query.Bytes()))
	poll(t, l)
	require.Equal(t, protocol.NotReady().Bytes(), l.Request())
}

func TestPostDeferredUnknownID(t *testing.T) {
	l := New(1, WithDeferredTable(2))
	l.Begin()
	err := l.PostDeferredResponse(&protocol.Response{Code: protocol.ResponseOK, ID: 9})
	require.Equal(t, ErrUnknownResponseID, err)
}

func TestResponseReadyEvent(t *testing.T) {
	l := New(1, WithDeferredTable(2))
	l.Begin()

	id, err := l.DeferResponse()
	require.NoError(t, err)

	l.OnEvent(framework.Event{
		ID:   EventResponseReady,
		Data: &protocol.Response{Code: protocol.ResponseOK, ID: id, Data: []byte{0xab}},
	})

	query := (&protocol.QueryResponseReady{ResponseID: id}).Command()
	require.NoError(t, l.Receive(query.Bytes()))
	poll(t, l)
	resp, err := protocol.ParseResponse(l.Request())
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseOK, resp.Code)
	require.Equal(t, []byte{0xab}, resp.Data)
}
