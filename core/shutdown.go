package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager handles graceful shutdown of the application
type ShutdownManager struct {
	timeout        time.Duration
	hooks          []ShutdownHook
	mu             sync.Mutex
	shutdownChan   chan struct{}
	isShuttingDown bool
	logger         Logger
}

// ShutdownHook is a function to be called during shutdown
type ShutdownHook struct {
	Name     string
	Priority int // Lower values execute first
	Hook     func(context.Context) error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ShutdownManager{
		timeout:      timeout,
		hooks:        make([]ShutdownHook, 0),
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}
}

// RegisterHook registers a shutdown hook
func (sm *ShutdownManager) RegisterHook(hook ShutdownHook) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.hooks = append(sm.hooks, hook)

	// Sort hooks by priority
	for i := len(sm.hooks) - 1; i > 0; i-- {
		if sm.hooks[i].Priority >= sm.hooks[i-1].Priority {
			break
		}
		sm.hooks[i], sm.hooks[i-1] = sm.hooks[i-1], sm.hooks[i]
	}
}

// ListenForShutdown starts listening for shutdown signals. The returned
// function stops listening.
func (sm *ShutdownManager) ListenForShutdown() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			sm.logger.Warningf("Received shutdown signal: %v", sig)
			_ = sm.Shutdown()
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(quit)
		})
	}
}

// Shutdown runs every hook in priority order within the shutdown timeout.
func (sm *ShutdownManager) Shutdown() error {
	sm.mu.Lock()
	if sm.isShuttingDown {
		sm.mu.Unlock()
		return ErrShutdownInProgress
	}
	sm.isShuttingDown = true
	hooks := append([]ShutdownHook(nil), sm.hooks...)
	sm.mu.Unlock()

	sm.logger.Noticef("Starting graceful shutdown (timeout: %v)", sm.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	// Signal that shutdown has started
	close(sm.shutdownChan)

	done := make(chan []error, 1)
	go func() {
		var errs []error
		for _, h := range hooks {
			sm.logger.Debugf("Executing shutdown hook: %s (priority: %d)", h.Name, h.Priority)
			if err := h.Hook(ctx); err != nil {
				sm.logger.Errorf("Shutdown hook '%s' failed: %v", h.Name, err)
				errs = append(errs, fmt.Errorf("hook %s: %w", h.Name, err))
			}
		}
		done <- errs
	}()

	select {
	case errs := <-done:
		if len(errs) > 0 {
			return fmt.Errorf("%w: %d hook(s) failed", ErrShutdownTimeout, len(errs))
		}
		sm.logger.Noticef("Graceful shutdown completed successfully")
		return nil
	case <-ctx.Done():
		sm.logger.Errorf("Graceful shutdown timed out after %v", sm.timeout)
		return ErrShutdownTimeout
	}
}

// ShutdownChan returns a channel that's closed when shutdown starts
func (sm *ShutdownManager) ShutdownChan() <-chan struct{} {
	return sm.shutdownChan
}

// IsShuttingDown returns true if shutdown is in progress
func (sm *ShutdownManager) IsShuttingDown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.isShuttingDown
}

// GracefulRunner cancels the runs of a Runner when shutdown starts and waits
// for them to wind down: steps in flight finish and their teardown hooks run.
type GracefulRunner struct {
	*Runner
	shutdownManager *ShutdownManager

	mu       sync.Mutex
	stopping bool
	active   sync.WaitGroup
}

// NewGracefulRunner wraps r and registers its shutdown hook.
func NewGracefulRunner(r *Runner, shutdownManager *ShutdownManager) *GracefulRunner {
	gr := &GracefulRunner{
		Runner:          r,
		shutdownManager: shutdownManager,
	}

	shutdownManager.RegisterHook(ShutdownHook{
		Name:     "runner",
		Priority: 10,
		Hook:     gr.gracefulStop,
	})

	return gr
}

// Run is Runner.Run with shutdown tracking.
func (gr *GracefulRunner) Run(ctx context.Context, root string) (*RunResult, error) {
	gr.mu.Lock()
	if gr.stopping {
		gr.mu.Unlock()
		return nil, ErrShutdownInProgress
	}
	gr.active.Add(1)
	gr.mu.Unlock()
	defer gr.active.Done()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		select {
		case <-gr.shutdownManager.ShutdownChan():
			cancel(ErrRunCancelled)
		case <-runCtx.Done():
		}
	}()

	return gr.Runner.Run(runCtx, root)
}

func (gr *GracefulRunner) gracefulStop(ctx context.Context) error {
	gr.mu.Lock()
	gr.stopping = true
	gr.mu.Unlock()

	gr.logger().Noticef("Cancelling run, waiting for running steps to finish")
	gr.Runner.Cancel()

	done := make(chan struct{})
	go func() {
		gr.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		gr.logger().Noticef("Run wound down")
		return nil
	case <-ctx.Done():
		gr.logger().Warningf("Forcing shutdown with steps still running")
		return ErrShutdownTimeout
	}
}
