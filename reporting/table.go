package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/netresearch/zrunner/core"
)

// TableSink prints the records of a run as a console table, followed by the
// details of every failure and the summary line.
type TableSink struct {
	Out io.Writer
	// Color enables ANSI colours on the status column.
	Color bool
	// Verbose adds passed hook records to the table.
	Verbose bool
}

func NewTableSink(out io.Writer) *TableSink {
	return &TableSink{Out: out}
}

func (s *TableSink) Report(res *core.RunResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(s.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Module", "Kind", "Name", "Status", "Duration", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Module", AutoMerge: true},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Message", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, rec := range res.Records {
		if rec.Kind != core.StepTest && rec.Outcome.Ok() && !s.Verbose {
			continue
		}
		t.AppendRow(table.Row{
			rec.ModulePath,
			string(rec.Kind),
			rec.Name,
			s.status(rec.Outcome.Status),
			formatDuration(rec.Duration),
			rec.Outcome.Message,
		})
	}

	t.AppendFooter(table.Row{"Total", "", "", res.Summary.Total, formatDuration(res.Duration), ""})
	t.Render()

	if err := s.writeFailures(res); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(s.Out, SummaryLine(res)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (s *TableSink) writeFailures(res *core.RunResult) error {
	var b strings.Builder
	for _, rec := range res.Records {
		if !rec.Outcome.IsFailure() {
			continue
		}

		fmt.Fprintf(&b, "\n=== %s %s: %s [%s]\n", strings.ToUpper(statusLabel(rec.Outcome.Status)), rec.Kind, rec.ID(), rec.Outcome.Message)
		if rec.Outcome.Trace != "" {
			b.WriteString(strings.TrimRight(rec.Outcome.Trace, "\n"))
			b.WriteByte('\n')
		}
		if rec.Stderr != "" && rec.Stderr != rec.Outcome.Trace {
			b.WriteString("--- stderr\n")
			b.WriteString(strings.TrimRight(rec.Stderr, "\n"))
			b.WriteByte('\n')
		}
	}

	if b.Len() == 0 {
		return nil
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(s.Out, b.String()); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	return nil
}

func (s *TableSink) status(st core.Status) string {
	label := statusLabel(st)
	if !s.Color {
		return label
	}

	switch st {
	case core.StatusPassed:
		return text.Colors{text.FgGreen}.Sprint(label)
	case core.StatusSkipped:
		return text.Colors{text.FgYellow}.Sprint(label)
	default:
		return text.Colors{text.FgRed, text.Bold}.Sprint(label)
	}
}
