package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/armon/circbuf"
	"github.com/gobs/args"
)

// Process exit statuses with a meaning beyond "failed".
const (
	// ExitCodeAssertion marks an assertion-style failure.
	ExitCodeAssertion = 1
	// ExitCodeSkip marks a step that skipped itself; the last stderr line is
	// the reason.
	ExitCodeSkip = 77
)

const (
	// DefaultInterpreter runs shell script modules.
	DefaultInterpreter = "bash"

	stderrTailSize   = 8 * 1024
	processWaitDelay = 2 * time.Second
	scriptEntrypoint = `. "$1" && "$2"`
)

type stepContextKey struct{}

// WithStep attaches the step being executed to ctx.
func WithStep(ctx context.Context, s *Step) context.Context {
	return context.WithValue(ctx, stepContextKey{}, s)
}

// StepFromContext returns the step attached by WithStep, if any.
func StepFromContext(ctx context.Context) (*Step, bool) {
	s, ok := ctx.Value(stepContextKey{}).(*Step)
	return s, ok
}

// CommandFunc runs a command line as a step, the way a local job runs its
// command.
type CommandFunc struct {
	Command     string
	Dir         string
	Environment []string
}

func (c *CommandFunc) Invoke(ctx context.Context, stdout, stderr io.Writer) error {
	cmdArgs := args.GetArgs(c.Command)
	if len(cmdArgs) == 0 {
		return ErrEmptyCommand
	}

	return runProcess(ctx, cmdArgs, c.Dir, c.Environment, stdout, stderr)
}

// ScriptFunc runs one function of a shell script: the interpreter sources the
// script and calls the function.
type ScriptFunc struct {
	Interpreter string
	Script      string
	Func        string
	Environment []string
}

func (s *ScriptFunc) Invoke(ctx context.Context, stdout, stderr io.Writer) error {
	interp := args.GetArgs(s.Interpreter)
	if len(interp) == 0 {
		interp = []string{DefaultInterpreter}
	}

	argv := append(interp, "-c", scriptEntrypoint, "zrunner", s.Script, s.Func)
	return runProcess(ctx, argv, filepath.Dir(s.Script), s.Environment, stdout, stderr)
}

func runProcess(ctx context.Context, argv []string, dir string, env []string, stdout, stderr io.Writer) error {
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("look path %q: %w", argv[0], err)
	}

	tail, err := circbuf.NewBuffer(stderrTailSize)
	if err != nil {
		return fmt.Errorf("stderr buffer: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)
	// add custom env variables to the existing ones
	// instead of overwriting them
	cmd.Env = append(append(os.Environ(), stepEnv(ctx)...), env...)
	cmd.Dir = dir
	cmd.WaitDelay = processWaitDelay

	err = cmd.Run()
	if err == nil {
		return nil
	}

	exitErr, ok := errors.AsType[*exec.ExitError](err)
	if !ok {
		return fmt.Errorf("process run: %w", err)
	}

	stderrTail := tail.String()
	switch code := exitErr.ExitCode(); code {
	case ExitCodeAssertion:
		return &AssertionError{Message: orDefault(lastLine(stderrTail), exitErr.Error()), Trace: stderrTail}
	case ExitCodeSkip:
		return Skip(orDefault(lastLine(stderrTail), "skipped by exit status 77"))
	case -1:
		return fmt.Errorf("process run: %w", exitErr)
	default:
		return fmt.Errorf("process run: %w", ExitError{ExitCode: code, Stderr: stderrTail})
	}
}

func stepEnv(ctx context.Context) []string {
	s, ok := StepFromContext(ctx)
	if !ok {
		return nil
	}
	return []string{
		"ZRUNNER_MODULE=" + s.ModulePath,
		"ZRUNNER_STEP=" + s.Name,
		"ZRUNNER_KIND=" + string(s.Kind),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
