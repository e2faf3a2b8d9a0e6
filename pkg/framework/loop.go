package framework

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop cooperatively polls a set of pollers at a fixed interval.
// Events posted to the loop are delivered to pollers implementing
// EventHandler at the start of the next iteration.
type Loop struct {
	Interval time.Duration

	pollers  []Poller
	handlers []EventHandler
	runners  []Runnable

	events []Event
	lock   sync.Mutex

	wakeUpCh chan struct{}
}

// DefaultInterval is the polling interval when none is set.
const DefaultInterval = 10 * time.Millisecond

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add registers pollers to the loop. A poller implementing EventHandler
// also receives events; a poller implementing Runnable is started in
// the background when the loop runs.
func (l *Loop) Add(pollers ...Poller) *Loop {
	for _, p := range pollers {
		l.pollers = append(l.pollers, p)
		if h, ok := p.(EventHandler); ok {
			l.handlers = append(l.handlers, h)
		}
		if r, ok := p.(Runnable); ok {
			l.runners = append(l.runners, r)
		}
	}
	return l
}

// AddRunnable adds Runnable implementations started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Post enqueues an event for delivery on the next iteration and wakes
// the loop up. Safe for concurrent use.
func (l *Loop) Post(event Event) {
	l.lock.Lock()
	l.events = append(l.events, event)
	l.lock.Unlock()
	l.TriggerNext()
}

// TriggerNext schedules the next iteration to run immediately.
func (l *Loop) TriggerNext() {
	if l.wakeUpCh == nil {
		return
	}
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := l.Run(context.TODO()); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

func (l *Loop) runIteration(ctx context.Context) {
	l.lock.Lock()
	events := l.events
	l.events = nil
	l.lock.Unlock()
	for _, event := range events {
		for _, h := range l.handlers {
			h.OnEvent(event)
		}
	}
	for _, p := range l.pollers {
		if err := p.Poll(ctx); err != nil {
			glog.Errorf("poll error: %v", err)
		}
	}
}
