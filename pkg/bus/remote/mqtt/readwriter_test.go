package mqtt

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleMsgAfterClose(t *testing.T) {
	p := NewPacketReadWriter(nil).ForDevice("dev")
	p.close()

	require.NotPanics(t, func() {
		p.handleMsg("dev/cmd", []byte{2, 0x01})
	})
	_, err := p.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestCloseIdempotent(t *testing.T) {
	p := NewPacketReadWriter(nil)
	p.close()
	require.NotPanics(t, p.close)
}

func TestHandleMsgDeliversInOrder(t *testing.T) {
	p := NewPacketReadWriter(nil).ForMaster("dev")
	p.handleMsg("dev/rsp", []byte{1})
	p.handleMsg("dev/rsp", []byte{2})

	pkt, err := p.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1}, pkt)
	pkt, err = p.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{2}, pkt)
}

func TestHandleMsgDropsWhenBacklogFull(t *testing.T) {
	p := NewPacketReadWriter(nil).ForDevice("dev")
	for i := 0; i < packetBacklog+1; i++ {
		p.handleMsg("dev/cmd", []byte{byte(i)})
	}
	// The overflowing delivery was dropped, not blocked on.
	for i := 0; i < packetBacklog; i++ {
		pkt, err := p.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, pkt)
	}
	p.close()
	_, err := p.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestTopicConventions(t *testing.T) {
	p := NewPacketReadWriter(nil).ForMaster("robot1")
	require.Equal(t, "robot1/rsp", p.SubTopic)
	require.Equal(t, "robot1/cmd", p.PubTopic)

	p = NewPacketReadWriter(nil).ForDevice("robot1")
	require.Equal(t, "robot1/cmd", p.SubTopic)
	require.Equal(t, "robot1/rsp", p.PubTopic)
}
