package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Poller is polled cooperatively by a Loop. Poll must do a bounded
// amount of work and return; it is never invoked concurrently with
// itself by the same loop.
type Poller interface {
	Poll(context.Context) error
}

// PollFunc is the func form of Poller.
type PollFunc func(context.Context) error

// Poll implements Poller.
func (f PollFunc) Poll(ctx context.Context) error {
	return f(ctx)
}

// Event is an internal event delivered to pollers between iterations.
type Event struct {
	// ID identifies the kind of event.
	ID uint32
	// Data is the event payload.
	Data interface{}
}

// EventHandler receives events posted to the loop. Pollers implementing
// EventHandler are delivered events at the start of each iteration,
// before any polling.
type EventHandler interface {
	OnEvent(Event)
}
