package reporting

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/netresearch/zrunner/core"
)

// JSONSink writes the whole RunResult as indented JSON.
type JSONSink struct {
	Out io.Writer
}

func NewJSONSink(out io.Writer) Sink {
	return &JSONSink{Out: out}
}

func (s *JSONSink) Report(res *core.RunResult) error {
	enc := json.NewEncoder(s.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	return nil
}
