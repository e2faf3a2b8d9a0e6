// Package listener implements the device side command dispatch engine.
package listener

// A Listener owns one pending command slot and one pending response
// slot, each a fixed capacity buffer with an occupancy flag. The bus
// transport delivers raw command bytes into the command slot from its
// receive path (Receive) and drains the response slot from its
// response-read path (Request); both calls are bounded and safe to
// invoke from an asynchronous delivery callback. All command
// interpretation happens in Poll, driven by a cooperative loop, so the
// delivery paths do no more work than a flag flip and a copy.
//
// At most one command is in flight: a command arriving while one is
// pending is rejected with ErrBusy, never queued. A response published
// while one is still unread replaces it. The mutex guarding the slots
// is held only for the flag check and copy, never across handlers.
