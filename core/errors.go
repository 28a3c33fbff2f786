package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Common errors used across the package
var (
	// Discovery errors
	ErrRootNotFound  = errors.New("root path does not exist")
	ErrAmbiguousHook = errors.New("ambiguous hook declaration")
	ErrNoLoader      = errors.New("no loader registered for file")
	ErrInvalidFilter = errors.New("invalid filter expression")

	// Step errors
	ErrStepTimeout  = errors.New("timeout")
	ErrRunCancelled = errors.New("run cancelled")
	ErrEmptyCommand = errors.New("command cannot be empty")
	ErrStepPanicked = errors.New("step panicked")

	// Shutdown errors
	ErrShutdownInProgress = errors.New("shutdown already in progress")
	ErrShutdownTimeout    = errors.New("shutdown timed out")
)

// Reasons recorded on units that never ran.
const (
	ReasonBeforeAllFailed = "before_all failed"
	ReasonBeforeFailed    = "before failed"
	ReasonRunCancelled    = "run cancelled"
	ReasonTimeout         = "timeout"
)

// DiscoveryError reports a malformed module declaration. It is fatal for the
// affected module only.
type DiscoveryError struct {
	Module string
	Name   string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover module %q: %s %q", e.Module, e.Err, e.Name)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ModuleLoadError reports a module file that could not be loaded or parsed.
type ModuleLoadError struct {
	Module string
	Err    error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("load module %q: %v", e.Module, e.Err)
}

func (e *ModuleLoadError) Unwrap() error { return e.Err }

// AssertionError signals an assertion-style failure of a step. Steps failing
// with it are recorded as failed rather than errored.
type AssertionError struct {
	Message string
	Trace   string
}

func (e *AssertionError) Error() string {
	if e.Message == "" {
		return "assertion failed"
	}
	return e.Message
}

// SkipError is returned by a step that decided not to run.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns a SkipError with the given reason.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// ExitError represents a process step that exited with a non-zero status
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e ExitError) Error() string {
	return fmt.Sprintf("non-zero exit code: %d", e.ExitCode)
}

// panicError carries a recovered panic value and the goroutine stack.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrStepPanicked, e.value)
}

func (e *panicError) Unwrap() error { return ErrStepPanicked }

func newPanicError(v any) *panicError {
	return &panicError{value: v, stack: string(debug.Stack())}
}

// WrapModuleError wraps a module-related error with context
func WrapModuleError(op string, module string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s module %q: %w", op, module, err)
}

// WrapStepError wraps a step-related error with context
func WrapStepError(kind StepKind, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %q: %w", kind, name, err)
}

// Classify turns the error returned by a step invocation into its outcome.
func Classify(err error) Outcome {
	if err == nil {
		return Passed()
	}

	if skip, ok := errors.AsType[*SkipError](err); ok {
		return Skipped(skip.Reason)
	}
	if errors.Is(err, ErrStepTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return Errored(ReasonTimeout, "")
	}
	if assertion, ok := errors.AsType[*AssertionError](err); ok {
		return Failed(assertion.Error(), assertion.Trace)
	}
	if p, ok := errors.AsType[*panicError](err); ok {
		return Errored(p.Error(), p.stack)
	}
	if exit, ok := errors.AsType[ExitError](err); ok {
		return Errored(err.Error(), exit.Stderr)
	}

	return Errored(err.Error(), "")
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
