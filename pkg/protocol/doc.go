// Package protocol defines the command bus wire messages.
package protocol

// The command bus carries a simple request/response protocol between a
// master controller and slave devices over a shared, master-polled link
// (e.g. I2C). The master writes a command message to a device and later
// polls the device for a response.
//
// Every message is self-describing: its first byte is the total message
// length, so a receiver never reads past the message regardless of how
// large a buffer it arrived in. Commands carry a one-byte command code
// after the length; responses carry a response code and a response ID
// used to correlate deferred responses.
//
// Messages are encoded and decoded explicitly field by field. Both ends
// must agree on the layouts defined here byte for byte.
