package protocol

// CommandCode selects the handler for a command message.
type CommandCode byte

// Command codes.
const (
	// CmdNone is the reserved no-op command.
	CmdNone CommandCode = 0x00
	// CmdQueryID queries the identity of a slave device.
	CmdQueryID CommandCode = 0x01
	// CmdQueryResponse queries if a deferred response is ready.
	CmdQueryResponse CommandCode = 0x02
	// CmdResetDevice commands a slave device to reset. May be broadcast.
	CmdResetDevice CommandCode = 0x03
	// CmdMasterAddress announces the master's bus address. May be broadcast.
	CmdMasterAddress CommandCode = 0x04
	// CmdExecute sends a command line to execute.
	CmdExecute CommandCode = 0x05
	// CmdEcho commands a slave device to echo the command data back.
	CmdEcho CommandCode = 0x06

	// NotifyCmdInvalid is the notification code for an invalid command.
	NotifyCmdInvalid CommandCode = 0xfe
)

// ResponseCode indicates the outcome carried by a response message.
type ResponseCode byte

// Response codes.
const (
	// ResponseOK indicates the response contains the requested data.
	ResponseOK ResponseCode = 0x00
	// ResponseDeferred indicates the response is deferred. The response
	// ID identifies the deferred response for a later CmdQueryResponse.
	ResponseDeferred ResponseCode = 0x01
	// ResponseNotReady indicates a response is not yet ready.
	ResponseNotReady ResponseCode = 0x02
	// ResponseBusy indicates the device could not accept the command
	// because another command is still pending.
	ResponseBusy ResponseCode = 0x03
	// ResponseError indicates the command failed.
	ResponseError ResponseCode = 0x04
	// ResponseUnknown indicates the command was not recognized.
	ResponseUnknown ResponseCode = 0x05
)

// String returns a friendly name for display.
func (c ResponseCode) String() string {
	switch c {
	case ResponseOK:
		return "OK"
	case ResponseDeferred:
		return "DEFERRED"
	case ResponseNotReady:
		return "NOT_READY"
	case ResponseBusy:
		return "BUSY"
	case ResponseError:
		return "ERROR"
	case ResponseUnknown:
		return "UNKNOWN"
	}
	return "INVALID"
}

// DefaultBufferSize is the default capacity, in bytes, for both the
// pending command and pending response buffers of a device.
const DefaultBufferSize = 32
