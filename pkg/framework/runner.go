package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func runnableName(runnable Runnable, ordinal int) string {
	if named, ok := runnable.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("runner-%d", ordinal)
}

type runnerResult struct {
	name string
	err  error
}

// Runner runs multiple Runnables concurrently and waits for all of
// them to stop.
type Runner struct {
	Context context.Context

	count  int
	doneCh chan runnerResult
	exitCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		doneCh:  make(chan runnerResult, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals handles CtrlC and SIGTERM from the system.
// The first signal cancels the context, a second forces exit.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go spawns Runnables with the default context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith spawns Runnables with a specified context.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := runnableName(runner, r.count)
		r.count++
		go func(runner Runnable, name string) {
			glog.V(4).Infof("runner %q started", name)
			err := runner.Run(ctx)
			glog.V(4).Infof("runner %q stopped", name)
			r.doneCh <- runnerResult{name: name, err: err}
		}(runner, name)
	}
	return r
}

// Wait blocks until every spawned Runnable stops and aggregates their
// failures, attributing each to the runnable's name. A canceled
// context is a normal stop, not a failure.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for i := 0; i < r.count; i++ {
		select {
		case <-r.exitCh:
			return errors.New("forced exit")
		case res := <-r.doneCh:
			if res.err != nil && res.err != context.Canceled {
				errs.Add(fmt.Errorf("%s: %v", res.name, res.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func which doesn't accept a context.
// cancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContext is the simplified form with no cancel callback.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser wraps RunWithContextCancel and guarantees
// closer.Close is called exactly once, on cancel or on exit of fn.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
