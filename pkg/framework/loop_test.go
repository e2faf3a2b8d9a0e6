package framework

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never held")
}

type countingPoller struct {
	lock   sync.Mutex
	polls  int
	events []Event
}

func (p *countingPoller) Poll(ctx context.Context) error {
	p.lock.Lock()
	p.polls++
	p.lock.Unlock()
	return nil
}

func (p *countingPoller) OnEvent(event Event) {
	p.lock.Lock()
	p.events = append(p.events, event)
	p.lock.Unlock()
}

func (p *countingPoller) snapshot() (int, []Event) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.polls, append([]Event(nil), p.events...)
}

func TestLoopPollsAndDeliversEvents(t *testing.T) {
	poller := &countingPoller{}
	loop := NewLoop().Add(poller)
	loop.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- loop.Run(ctx)
	}()

	waitFor(t, func() bool {
		polls, _ := poller.snapshot()
		return polls > 0
	})

	loop.Post(Event{ID: 42, Data: "ping"})
	waitFor(t, func() bool {
		_, events := poller.snapshot()
		return len(events) == 1 && events[0].ID == 42
	})

	cancel()
	require.Equal(t, context.Canceled, <-doneCh)
}

func TestLoopEventsPrecedePolling(t *testing.T) {
	var order []string
	var lock sync.Mutex
	var loop *Loop

	poller := PollFunc(func(ctx context.Context) error {
		lock.Lock()
		order = append(order, "poll")
		lock.Unlock()
		return nil
	})
	handler := &orderedHandler{record: func() {
		lock.Lock()
		order = append(order, "event")
		lock.Unlock()
	}}

	loop = NewLoop().Add(handler, poller)
	loop.Interval = time.Hour // only wakeups drive iterations
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	waitFor(t, func() bool {
		loop.Post(Event{ID: 1})
		lock.Lock()
		defer lock.Unlock()
		return len(order) >= 2
	})

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, "event", order[0])
}

type orderedHandler struct {
	record func()
}

func (h *orderedHandler) Poll(ctx context.Context) error { return nil }
func (h *orderedHandler) OnEvent(Event)                  { h.record() }

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Aggregate())
	errs.Add(nil)
	require.NoError(t, errs.Aggregate())
	errs.Add(context.DeadlineExceeded, nil)
	require.Equal(t, context.DeadlineExceeded, errs.Aggregate())
	errs.Add(context.Canceled)
	err := errs.Aggregate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "deadline")
	require.Contains(t, err.Error(), "; ")
}
