package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/armon/circbuf"
)

const (
	// maximum size of a stdout/stderr stream to be kept in memory per step
	maxStreamSize = 10 * 1024 * 1024
	logPrefix     = "[Step %s %s:%s (%s)] %s"
)

// Step describes one hook or unit invocation.
type Step struct {
	ModulePath string
	Kind       StepKind
	Name       string
	Callable   Callable `json:"-"`
}

type Context struct {
	Logger    Logger
	Step      *Step
	Execution *Execution
	Ctx       context.Context //nolint:containedctx // carries the per-step deadline through the middleware chain

	current     int
	executed    bool
	middlewares []Middleware
}

// NewContext creates the middleware context for one step. ctx should already
// carry the step deadline.
func NewContext(ctx context.Context, l Logger, s *Step, e *Execution, ms []Middleware) *Context {
	return &Context{
		Logger:      l,
		Step:        s,
		Execution:   e,
		Ctx:         ctx,
		middlewares: ms,
	}
}

func (c *Context) Start() {
	c.Execution.Start()
}

func (c *Context) Next() error {
	if err := c.doNext(); err != nil || c.executed {
		c.Stop(err)
	}

	return nil
}

func (c *Context) doNext() error {
	for {
		m, end := c.getNext()
		if end {
			break
		}

		if !c.Execution.IsRunning && !m.ContinueOnStop() {
			continue
		}

		if err := m.Run(c); err != nil {
			return fmt.Errorf("middleware run: %w", err)
		}
		return nil
	}

	if !c.Execution.IsRunning {
		return nil
	}

	c.executed = true
	return c.invoke()
}

// invoke runs the step callable, converting panics into errors and abandoning
// callables that outlive the step deadline.
func (c *Context) invoke() error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- newPanicError(r)
			}
		}()
		done <- c.Step.Callable.Invoke(c.Ctx, c.Execution.Stdout(), c.Execution.Stderr())
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(c.Ctx.Err(), context.DeadlineExceeded) {
			return ErrStepTimeout
		}
		return err
	case <-c.Ctx.Done():
		c.Execution.detach()
		if errors.Is(c.Ctx.Err(), context.DeadlineExceeded) {
			return ErrStepTimeout
		}
		return c.Ctx.Err()
	}
}

func (c *Context) getNext() (Middleware, bool) {
	if c.current >= len(c.middlewares) {
		return nil, true
	}

	c.current++
	return c.middlewares[c.current-1], false
}

func (c *Context) Stop(err error) {
	if !c.Execution.IsRunning {
		return
	}

	c.Execution.Stop(err)
}

func (c *Context) Log(msg string) {
	args := []any{c.Step.Kind, c.Step.ModulePath, c.Step.Name, c.Execution.ID, msg}

	switch c.Execution.Outcome.Status {
	case StatusFailed, StatusErrored:
		c.Logger.Errorf(logPrefix, args...)
	case StatusSkipped:
		c.Logger.Warningf(logPrefix, args...)
	default:
		c.Logger.Noticef(logPrefix, args...)
	}
}

func (c *Context) Warn(msg string) {
	args := []any{c.Step.Kind, c.Step.ModulePath, c.Step.Name, c.Execution.ID, msg}
	c.Logger.Warningf(logPrefix, args...)
}

// Execution contains all the information relative to a step execution.
type Execution struct {
	ID        string
	Date      time.Time
	Duration  time.Duration
	IsRunning bool
	Outcome   Outcome
	Error     error `json:"-"`

	OutputStream, ErrorStream *circbuf.Buffer `json:"-"`

	// Captured output for persistence after buffer cleanup
	CapturedStdout, CapturedStderr string `json:"-"`

	mu       sync.Mutex
	detached bool
	clock    Clock
}

// NewExecution returns a new Execution, with a random ID
func NewExecution() (*Execution, error) {
	id, err := randomID()
	if err != nil {
		return nil, err
	}

	return &Execution{
		ID:           id,
		OutputStream: DefaultBufferPool.Get(),
		ErrorStream:  DefaultBufferPool.Get(),
		clock:        GetDefaultClock(),
	}, nil
}

func (e *Execution) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

// Start starts the execution, initializes the running flag and the start date.
func (e *Execution) Start() {
	e.IsRunning = true
	e.Date = e.now()
}

// Stop halts the execution and classifies err into the execution outcome.
func (e *Execution) Stop(err error) {
	e.IsRunning = false
	if e.Date.IsZero() {
		e.Date = e.now()
	}
	e.Duration = e.now().Sub(e.Date)
	if e.Duration < 0 {
		e.Duration = 0
	}

	e.Error = err
	e.Outcome = Classify(err)
}

func (e *Execution) IsFailed() bool {
	return e.Outcome.IsFailure()
}

func (e *Execution) IsSkipped() bool {
	return e.Outcome.Status == StatusSkipped
}

// Stdout returns a writer into the execution's stdout buffer.
func (e *Execution) Stdout() io.Writer {
	return &guardedWriter{e: e, buf: e.OutputStream}
}

// Stderr returns a writer into the execution's stderr buffer.
func (e *Execution) Stderr() io.Writer {
	return &guardedWriter{e: e, buf: e.ErrorStream}
}

// detach drops every later write from an abandoned callable.
func (e *Execution) detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detached = true
}

// GetStdout returns stdout content, preferring live buffer if available
func (e *Execution) GetStdout() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OutputStream != nil {
		return e.OutputStream.String()
	}
	return e.CapturedStdout
}

// GetStderr returns stderr content, preferring live buffer if available
func (e *Execution) GetStderr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ErrorStream != nil {
		return e.ErrorStream.String()
	}
	return e.CapturedStderr
}

// Cleanup returns execution buffers to the pool for reuse
func (e *Execution) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// writers check detached under the same lock, so an abandoned callable
	// cannot touch a buffer once it is back in the pool
	e.detached = true

	if e.OutputStream != nil {
		e.CapturedStdout = e.OutputStream.String()
		DefaultBufferPool.Put(e.OutputStream)
		e.OutputStream = nil
	}
	if e.ErrorStream != nil {
		e.CapturedStderr = e.ErrorStream.String()
		DefaultBufferPool.Put(e.ErrorStream)
		e.ErrorStream = nil
	}
}

type guardedWriter struct {
	e   *Execution
	buf *circbuf.Buffer
}

func (w *guardedWriter) Write(p []byte) (int, error) {
	w.e.mu.Lock()
	defer w.e.mu.Unlock()
	if w.e.detached || w.buf == nil {
		return len(p), nil
	}
	n, err := w.buf.Write(p)
	if err != nil {
		return n, fmt.Errorf("capture output: %w", err)
	}
	return n, nil
}

// Middleware can wrap any step execution, allowing to execute code before
// or/and after the step callable runs
type Middleware interface {
	// Run is called instead of the step callable, you MUST call `ctx.Next`
	// inside of the middleware `Run` function otherwise the step never runs.
	Run(*Context) error
	// ContinueOnStop reports whether Run should be called even when the
	// execution has been stopped
	ContinueOnStop() bool
}

type middlewareContainer struct {
	m     map[string]Middleware
	order []string
}

func (c *middlewareContainer) Use(ms ...Middleware) {
	if c.m == nil {
		c.m = make(map[string]Middleware, 0)
	}

	for _, m := range ms {
		if m == nil {
			continue
		}

		if v := reflect.ValueOf(m); v.Kind() == reflect.Pointer && v.IsNil() {
			continue
		}

		t := reflect.TypeOf(m).String()
		if _, ok := c.m[t]; ok {
			continue
		}

		c.order = append(c.order, t)
		c.m[t] = m
	}
}

func (c *middlewareContainer) Middlewares() []Middleware {
	ms := make([]Middleware, 0, len(c.order))
	for _, t := range c.order {
		ms = append(ms, c.m[t])
	}
	return ms
}

type Logger interface {
	Criticalf(format string, args ...any)
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
	Noticef(format string, args ...any)
	Warningf(format string, args ...any)
}

func randomID() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}

	return fmt.Sprintf("%x", b), nil
}
