// Package reporting renders a finished run for people and tools.
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/netresearch/zrunner/core"
)

// Sink consumes the result of a finished run.
type Sink interface {
	Report(res *core.RunResult) error
}

// MultiSink reports to every sink in order. A failing sink does not stop the
// others; their errors are joined.
type MultiSink []Sink

func (m MultiSink) Report(res *core.RunResult) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Report(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fileSink creates path and reports into it through the sink built by newSink.
type fileSink struct {
	path    string
	newSink func(io.Writer) Sink
}

// ToFile returns a Sink writing the report produced by newSink to path.
func ToFile(path string, newSink func(io.Writer) Sink) Sink {
	return &fileSink{path: path, newSink: newSink}
}

func (f *fileSink) Report(res *core.RunResult) (err error) {
	out, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("create report %q: %w", f.path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report %q: %w", f.path, cerr)
		}
	}()

	return f.newSink(out).Report(res)
}

var titleCaser = cases.Title(language.English)

// statusLabel renders a status for humans: "Passed", "Failed", ...
func statusLabel(s core.Status) string {
	return titleCaser.String(string(s))
}

// SummaryLine is the one-line verdict printed after a run.
func SummaryLine(res *core.RunResult) string {
	s := res.Summary
	line := fmt.Sprintf("Ran %d tests in %s (%d failed, %d errored, %d passed, %d skipped)",
		s.Total, formatDuration(res.Duration), s.Failed, s.Errored, s.Passed, s.Skipped)

	if s.HookFailures > 0 || s.LoadErrors > 0 {
		line += fmt.Sprintf(", %d hook failures, %d load errors", s.HookFailures, s.LoadErrors)
	}
	return line
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
