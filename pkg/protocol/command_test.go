package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	testCases := []struct {
		name   string
		cmd    Command
		expect []byte
	}{
		{"no data", Command{Code: CmdQueryID}, []byte{2, 0x01}},
		{"reset", Command{Code: CmdResetDevice}, []byte{2, 0x03}},
		{"small data", Command{Code: CmdMasterAddress, Data: []byte{0x10}}, []byte{3, 0x04, 0x10}},
		{"query response", Command{Code: CmdQueryResponse, Data: []byte{7, 0x05}}, []byte{4, 0x02, 7, 0x05}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.cmd.Bytes())
			require.Equal(t, len(tc.expect), tc.cmd.Len())
			var buf bytes.Buffer
			n, err := tc.cmd.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.Equal(t, len(tc.expect), n)
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte{4, 0x02, 7, 0x05})
	require.NoError(t, err)
	require.Equal(t, CmdQueryResponse, cmd.Code)
	require.Equal(t, []byte{7, 0x05}, cmd.Data)
}

func TestParseCommandIgnoresTrailingBytes(t *testing.T) {
	// A command arriving in a capacity sized buffer: the length byte
	// governs, trailing garbage is never read.
	buf := make([]byte, DefaultBufferSize)
	copy(buf, []byte{3, 0x04, 0x2a, 0xff, 0xff})
	cmd, err := ParseCommand(buf)
	require.NoError(t, err)
	require.Equal(t, CmdMasterAddress, cmd.Code)
	require.Equal(t, []byte{0x2a}, cmd.Data)
}

func TestParseCommandErrors(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		expect error
	}{
		{"empty", nil, ErrTruncated},
		{"header only partial", []byte{2}, ErrTruncated},
		{"declared longer than buffer", []byte{5, 0x06, 1}, ErrTruncated},
		{"length below header", []byte{1, 0x01}, ErrBadLength},
		{"zero length", []byte{0, 0x01}, ErrBadLength},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCommand(tc.in)
			require.Equal(t, tc.expect, err)
		})
	}
}

func TestExecuteRoundTrip(t *testing.T) {
	cmd := (&Execute{RequestorAddress: 0x11, CommandLine: "servo pan 45"}).Command()
	require.Equal(t, CmdExecute, cmd.Code)
	require.Equal(t, CommandHeaderSize+1+TextFieldSize, cmd.Len())
	require.True(t, cmd.Len() <= DefaultBufferSize)

	exec, err := ExecuteFrom(cmd)
	require.NoError(t, err)
	require.Equal(t, byte(0x11), exec.RequestorAddress)
	require.Equal(t, "servo pan 45", exec.CommandLine)
}

func TestExecuteTruncatesLongLine(t *testing.T) {
	line := "a very long command line that exceeds the field size"
	cmd := (&Execute{CommandLine: line}).Command()
	exec, err := ExecuteFrom(cmd)
	require.NoError(t, err)
	require.Equal(t, line[:TextFieldSize-1], exec.CommandLine)
}

func TestEchoRoundTrip(t *testing.T) {
	cmd := (&Echo{Data: "hello"}).Command()
	require.Equal(t, CmdEcho, cmd.Code)
	require.Equal(t, CommandHeaderSize+TextFieldSize, cmd.Len())

	echo, err := EchoFrom(cmd)
	require.NoError(t, err)
	require.Equal(t, "hello", echo.Data)
}

func TestQueryResponseReadyRoundTrip(t *testing.T) {
	cmd := (&QueryResponseReady{ResponseID: 9, Original: CmdExecute}).Command()
	require.Equal(t, []byte{4, 0x02, 9, 0x05}, cmd.Bytes())

	q, err := QueryResponseReadyFrom(cmd)
	require.NoError(t, err)
	require.Equal(t, byte(9), q.ResponseID)
	require.Equal(t, CmdExecute, q.Original)
}

func TestTypedDecodeRejectsWrongShape(t *testing.T) {
	short := &Command{Code: CmdExecute, Data: []byte{1, 2}}
	_, err := ExecuteFrom(short)
	require.Equal(t, ErrBadLength, err)
	_, err = EchoFrom(short)
	require.Equal(t, ErrBadLength, err)
	_, err = QueryResponseReadyFrom(&Command{Code: CmdQueryResponse})
	require.Equal(t, ErrBadLength, err)
	_, err = MasterAddressFrom(&Command{Code: CmdMasterAddress})
	require.Equal(t, ErrBadLength, err)
}
