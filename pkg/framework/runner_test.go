package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnerCollectsNamedFailures(t *testing.T) {
	runner := NewRunner()
	runner.Go(
		NamedRun("good", RunnableFunc(func(context.Context) error { return nil })),
		NamedRun("bad", RunnableFunc(func(context.Context) error {
			return errors.New("boom")
		})),
	)
	err := runner.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad: boom")
	require.NotContains(t, err.Error(), "good")
}

func TestRunnerIgnoresCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunnerWith(ctx)
	runner.Go(RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return context.Canceled
	}))
	cancel()
	require.NoError(t, runner.Wait())
}

func TestRunnerNamesUnnamedRunnables(t *testing.T) {
	runner := NewRunner()
	runner.Go(RunnableFunc(func(context.Context) error {
		return errors.New("boom")
	}))
	err := runner.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "runner-0: boom")
}
