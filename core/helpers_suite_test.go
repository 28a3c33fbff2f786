package core

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"testing"
)

// Test middleware and logger types shared by the tests in this package

type TestMiddleware struct {
	Called int
}

func (m *TestMiddleware) ContinueOnStop() bool { return false }
func (m *TestMiddleware) Run(ctx *Context) error {
	m.Called++
	return ctx.Next()
}

type TestLogger struct{}

func (*TestLogger) Criticalf(string, ...any) {}
func (*TestLogger) Debugf(string, ...any)    {}
func (*TestLogger) Errorf(string, ...any)    {}
func (*TestLogger) Noticef(string, ...any)   {}
func (*TestLogger) Warningf(string, ...any)  {}

// callLog records the order in which callables ran.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fn returns a callable that logs name and returns err.
func (l *callLog) fn(name string, err error) Callable {
	return Func(func(_ context.Context, stdout, _ io.Writer) error {
		l.add(name)
		_, _ = fmt.Fprintf(stdout, "%s ran\n", name)
		return err
	})
}

// summaryOf renders records as "kind:name=status" for compact assertions.
func summaryOf(records []StepRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, fmt.Sprintf("%s:%s=%s", r.Kind, r.Name, r.Outcome.Status))
	}
	return out
}

func newTestModule(path string, hooks Hooks, units ...*Unit) *Module {
	for _, u := range units {
		u.ModulePath = path
	}
	return &Module{Path: path, Units: units, Hooks: hooks}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}
