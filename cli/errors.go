package cli

import (
	"errors"

	flags "github.com/jessevdk/go-flags"
)

var (
	// ErrRunFailed is returned by the run command when any step failed or
	// errored.
	ErrRunFailed = errors.New("run failed")
	// ErrNoPath is returned when neither arguments nor configuration name a
	// root to run.
	ErrNoPath = errors.New("a path to run is required")
)

// Exit statuses of the zrunner binary.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// ExitCode maps the error returned by a command to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrRunFailed):
		return ExitFailed
	}

	if flagErr, ok := errors.AsType[*flags.Error](err); ok && flagErr.Type == flags.ErrHelp {
		return ExitOK
	}
	return ExitUsage
}
