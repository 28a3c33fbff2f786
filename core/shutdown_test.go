package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/zrunner/test/testutil"
)

func TestShutdownManager(t *testing.T) {
	logger := &TestLogger{}
	sm := NewShutdownManager(logger, 5*time.Second)

	if sm == nil {
		t.Fatal("NewShutdownManager returned nil")
	}

	if sm.timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", sm.timeout)
	}

	if sm.IsShuttingDown() {
		t.Error("Should not be shutting down initially")
	}

	if NewShutdownManager(logger, 0).timeout != 30*time.Second {
		t.Error("Expected default timeout of 30s")
	}
}

func TestShutdownHooks(t *testing.T) {
	logger := &TestLogger{}
	sm := NewShutdownManager(logger, 2*time.Second)

	// Track hook execution order
	var executionOrder []string

	for _, h := range []struct {
		name     string
		priority int
	}{{"hook2", 20}, {"hook1", 10}, {"hook3", 30}} {
		sm.RegisterHook(ShutdownHook{
			Name:     h.name,
			Priority: h.priority,
			Hook: func(context.Context) error {
				executionOrder = append(executionOrder, h.name)
				return nil
			},
		})
	}

	require.NoError(t, sm.Shutdown())

	// Verify execution order (should be sorted by priority)
	assert.Equal(t, []string{"hook1", "hook2", "hook3"}, executionOrder)
	assert.True(t, sm.IsShuttingDown())

	select {
	case <-sm.ShutdownChan():
	default:
		t.Error("shutdown channel should be closed")
	}

	require.ErrorIs(t, sm.Shutdown(), ErrShutdownInProgress)
}

func TestShutdownTimeout(t *testing.T) {
	logger := &TestLogger{}
	sm := NewShutdownManager(logger, 100*time.Millisecond)

	// Register a hook that takes too long
	sm.RegisterHook(ShutdownHook{
		Name:     "slow-hook",
		Priority: 10,
		Hook: func(context.Context) error {
			time.Sleep(500 * time.Millisecond)
			return nil
		},
	})

	start := time.Now()
	err := sm.Shutdown()
	duration := time.Since(start)

	require.ErrorIs(t, err, ErrShutdownTimeout)

	// Should timeout around 100ms (with some tolerance)
	if duration > 400*time.Millisecond {
		t.Errorf("Shutdown took too long: %v", duration)
	}
}

func TestShutdownWithErrors(t *testing.T) {
	sm := NewShutdownManager(&TestLogger{}, time.Second)

	ran := false
	sm.RegisterHook(ShutdownHook{Name: "failing", Priority: 1, Hook: func(context.Context) error {
		return errors.New("flush failed")
	}})
	sm.RegisterHook(ShutdownHook{Name: "after-failure", Priority: 2, Hook: func(context.Context) error {
		ran = true
		return nil
	}})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 hook(s) failed")
	assert.True(t, ran, "later hooks still run after a failure")
}

func TestListenForShutdownStop(t *testing.T) {
	sm := NewShutdownManager(&TestLogger{}, time.Second)
	stop := sm.ListenForShutdown()
	stop()
	stop()
	assert.False(t, sm.IsShuttingDown())
}

func TestGracefulRunnerCancelsRunOnShutdown(t *testing.T) {
	sm := NewShutdownManager(&TestLogger{}, 5*time.Second)

	root := t.TempDir()
	writeFile(t, root, "a_test.yaml", "test_a: \"true\"\n")

	bl := &blockingLoader{started: make(chan struct{}), release: make(chan struct{})}
	l := &TestLogger{}
	d := NewDiscovery(l, NewLoaderRegistry(bl))
	gr := NewGracefulRunner(NewRunner(l, d, NewExecutor(l)), sm)

	var (
		res    *RunResult
		runErr error
		wg     sync.WaitGroup
	)
	wg.Go(func() {
		res, runErr = gr.Run(context.Background(), root)
	})

	<-bl.started
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- sm.Shutdown() }()

	testutil.Eventually(t, func() bool {
		gr.mu.Lock()
		defer gr.mu.Unlock()
		return gr.stopping
	})
	time.Sleep(20 * time.Millisecond)
	close(bl.release)
	wg.Wait()

	require.NoError(t, <-shutdownErr)
	require.NoError(t, runErr)
	assert.Equal(t, []string{"test:test_block=passed", "test:test_after=skipped"}, summaryOf(res.Records))

	_, err := gr.Run(context.Background(), root)
	require.ErrorIs(t, err, ErrShutdownInProgress)
}

// blockingLoader serves two units for any file; the first blocks until
// released.
type blockingLoader struct {
	started chan struct{}
	release chan struct{}
}

func (*blockingLoader) Extensions() []string { return []string{".yaml"} }

func (bl *blockingLoader) Load(context.Context, string) ([]Symbol, error) {
	return []Symbol{
		{Name: "test_block", Line: 1, Callable: Func(func(context.Context, io.Writer, io.Writer) error {
			close(bl.started)
			<-bl.release
			return nil
		})},
		{Name: "test_after", Line: 2, Callable: Func(func(context.Context, io.Writer, io.Writer) error { return nil })},
	}, nil
}
