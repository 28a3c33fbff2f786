package reporting

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/netresearch/zrunner/core"
)

// DefaultSuiteName names the testsuites element when none is configured.
const DefaultSuiteName = "zrunner"

// JUnitSink writes a JUnit XML report with one testsuite per module. Unit
// records become testcases; failing hooks and module loads become testcases
// named "<kind>:<name>" so CI tools surface them.
type JUnitSink struct {
	Out       io.Writer
	SuiteName string
}

func NewJUnitSink(out io.Writer, suiteName string) *JUnitSink {
	return &JUnitSink{Out: out, SuiteName: suiteName}
}

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
	SystemErr string        `xml:"system-err,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

func (s *JUnitSink) Report(res *core.RunResult) error {
	doc := buildJUnit(res, s.SuiteName)

	if _, err := io.WriteString(s.Out, xml.Header); err != nil {
		return fmt.Errorf("write junit header: %w", err)
	}
	enc := xml.NewEncoder(s.Out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit report: %w", err)
	}
	if _, err := io.WriteString(s.Out, "\n"); err != nil {
		return fmt.Errorf("write junit report: %w", err)
	}
	return nil
}

func buildJUnit(res *core.RunResult, name string) junitTestSuites {
	if name == "" {
		name = DefaultSuiteName
	}
	doc := junitTestSuites{Name: name, Time: seconds(res.Duration.Seconds())}

	index := make(map[string]int)
	elapsed := make(map[int]time.Duration)
	for _, rec := range res.Records {
		if rec.Kind != core.StepTest && !rec.Outcome.IsFailure() {
			continue
		}

		i, ok := index[rec.ModulePath]
		if !ok {
			i = len(doc.Suites)
			index[rec.ModulePath] = i
			doc.Suites = append(doc.Suites, junitTestSuite{
				Name:      rec.ModulePath,
				Timestamp: rec.Started.UTC().Format("2006-01-02T15:04:05"),
			})
		}

		suite := &doc.Suites[i]
		tc := junitTestCase{
			Name:      rec.Name,
			ClassName: rec.ModulePath,
			Time:      seconds(rec.Duration.Seconds()),
			SystemOut: rec.Stdout,
			SystemErr: rec.Stderr,
		}
		if rec.Kind != core.StepTest {
			tc.Name = fmt.Sprintf("%s:%s", rec.Kind, rec.Name)
		}

		switch rec.Outcome.Status {
		case core.StatusFailed:
			tc.Failure = &junitProblem{Message: rec.Outcome.Message, Type: "AssertionError", Body: rec.Outcome.Trace}
			suite.Failures++
		case core.StatusErrored:
			tc.Error = &junitProblem{Message: rec.Outcome.Message, Type: "Error", Body: rec.Outcome.Trace}
			suite.Errors++
		case core.StatusSkipped:
			tc.Skipped = &junitSkipped{Message: rec.Outcome.Message}
			suite.Skipped++
		}

		elapsed[i] += rec.Duration
		suite.Tests++
		suite.Cases = append(suite.Cases, tc)
	}

	for i := range doc.Suites {
		suite := &doc.Suites[i]
		suite.Time = seconds(elapsed[i].Seconds())

		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Skipped += suite.Skipped
	}

	return doc
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
