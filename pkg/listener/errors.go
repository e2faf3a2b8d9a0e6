package listener

import "errors"

var (
	// ErrBusy indicates a command is already pending and the incoming
	// command was rejected without touching the pending one.
	ErrBusy = errors.New("command pending")
	// ErrOverflow indicates the command declares a length larger than
	// the command buffer. Nothing is copied.
	ErrOverflow = errors.New("command too large")
	// ErrDeferredFull indicates the deferred response table has no
	// free entry.
	ErrDeferredFull = errors.New("deferred response table full")
	// ErrNoDeferredTable indicates deferred responses are not enabled
	// on this listener.
	ErrNoDeferredTable = errors.New("deferred responses not enabled")
	// ErrUnknownResponseID indicates no reserved deferred entry matches
	// the response ID.
	ErrUnknownResponseID = errors.New("unknown response id")
)
