package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/netresearch/zrunner/core"
	"github.com/netresearch/zrunner/metrics"
	"github.com/netresearch/zrunner/middlewares"
	"github.com/netresearch/zrunner/reporting"
)

// RunCommand discovers and runs the tests under a path and reports the
// result. It returns ErrRunFailed when any step failed or errored.
type RunCommand struct {
	DiscoveryOptions

	Parallel   int           `long:"parallel" short:"j" env:"ZRUNNER_PARALLEL" description:"number of modules run at once"`
	Timeout    time.Duration `long:"timeout" env:"ZRUNNER_TIMEOUT" description:"timeout of every hook and unit"`
	RunTimeout time.Duration `long:"run-timeout" env:"ZRUNNER_RUN_TIMEOUT" description:"timeout of the whole run"`
	FailFast   bool          `long:"fail-fast" short:"x" env:"ZRUNNER_FAIL_FAST" description:"stop after the first failure"`

	JUnitFile       string `long:"junit-file" env:"ZRUNNER_JUNIT_FILE" description:"write a JUnit XML report"`
	JUnitSuiteName  string `long:"junit-suite-name" env:"ZRUNNER_JUNIT_SUITE_NAME" description:"name of the JUnit testsuites element"`
	JSONFile        string `long:"json-file" env:"ZRUNNER_JSON_FILE" description:"write the result as JSON"`
	MetricsFile     string `long:"metrics-file" env:"ZRUNNER_METRICS_FILE" description:"write Prometheus metrics in textfile format"`
	SaveFolder      string `long:"save-folder" env:"ZRUNNER_SAVE_FOLDER" description:"save the output of every step to this folder"`
	SaveOnlyOnError bool   `long:"save-only-on-error" env:"ZRUNNER_SAVE_ONLY_ON_ERROR" description:"save only failing steps"`

	Verbose bool `long:"verbose" short:"v" description:"list hooks in the result table"`
	NoColor bool `long:"no-color" description:"disable colours"`

	Args struct {
		Path string `positional-arg-name:"path" description:"directory or module file to run"`
	} `positional-args:"yes"`

	Logger core.Logger
	// Out receives the result table, os.Stdout when nil. Progress is where the
	// spinner is drawn, os.Stderr when nil.
	Out      io.Writer
	Progress *os.File
}

// Execute runs the command
func (c *RunCommand) Execute(_ []string) error {
	if c.Args.Path == "" {
		return ErrNoPath
	}

	conf, err := c.loadConfig(c.Logger)
	if err != nil {
		return err
	}
	c.applyRunFlags(&conf.Global)
	if err := conf.Validate(); err != nil {
		return err
	}

	sink, err := c.newSink(&conf.Global)
	if err != nil {
		return err
	}

	runner, recorder, err := c.newRunner(&conf.Global)
	if err != nil {
		return err
	}

	sm := core.NewShutdownManager(c.Logger, 0)
	stop := sm.ListenForShutdown()
	defer stop()
	gr := core.NewGracefulRunner(runner, sm)

	progress := NewProgressIndicator(c.Logger, c.progressFile(), fmt.Sprintf("Running tests under %s", c.Args.Path))
	progress.Start()

	res, err := gr.Run(context.Background(), c.Args.Path)
	if err != nil {
		progress.Stop(false, "Run aborted")
		return err
	}
	progress.Stop(!res.HadFailure(), reporting.SummaryLine(res))

	if err := sink.Report(res); err != nil {
		c.Logger.Errorf("Reporting failed: %v", err)
	}
	if path := conf.Global.MetricsFile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			c.Logger.Errorf("Writing metrics to %q failed: %v", path, err)
		}
	}

	if res.HadFailure() {
		return ErrRunFailed
	}
	return nil
}

func (c *RunCommand) applyRunFlags(g *Global) {
	override(&g.Parallel, c.Parallel)
	override(&g.Timeout, c.Timeout)
	override(&g.RunTimeout, c.RunTimeout)
	override(&g.FailFast, c.FailFast)
	override(&g.JUnitFile, c.JUnitFile)
	override(&g.JUnitSuiteName, c.JUnitSuiteName)
	override(&g.JSONFile, c.JSONFile)
	override(&g.MetricsFile, c.MetricsFile)
	override(&g.SaveFolder, c.SaveFolder)
	if c.SaveOnlyOnError {
		g.SaveOnlyOnError = middlewares.BoolPtr(true)
	}
}

func (c *RunCommand) newRunner(g *Global) (*core.Runner, *metrics.Recorder, error) {
	d, err := c.newDiscovery(g, c.Logger)
	if err != nil {
		return nil, nil, err
	}

	recorder := metrics.NewRecorder()
	e := core.NewExecutor(c.Logger)
	e.StepTimeout = g.Timeout
	e.Metrics = recorder
	e.Use(middlewares.NewSave(&g.SaveConfig))

	r := core.NewRunner(c.Logger, d, e)
	r.Parallelism = g.Parallel
	r.FailFast = g.FailFast
	r.RunTimeout = g.RunTimeout
	return r, recorder, nil
}

func (c *RunCommand) newSink(g *Global) (reporting.Sink, error) {
	table := reporting.NewTableSink(c.out())
	table.Verbose = c.Verbose
	table.Color = c.colored()

	sinks := reporting.MultiSink{table}
	if g.JSONFile != "" {
		sinks = append(sinks, reporting.ToFile(g.JSONFile, reporting.NewJSONSink))
	}
	if g.JUnitFile != "" {
		suite := g.JUnitSuiteName
		sinks = append(sinks, reporting.ToFile(g.JUnitFile, func(w io.Writer) reporting.Sink {
			return reporting.NewJUnitSink(w, suite)
		}))
	}

	mail, err := reporting.NewMailSink(&g.MailConfig)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}
	if mail != nil {
		sinks = append(sinks, mail)
	}
	return sinks, nil
}

func (c *RunCommand) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *RunCommand) progressFile() *os.File {
	if c.Progress == nil {
		return os.Stderr
	}
	return c.Progress
}

func (c *RunCommand) colored() bool {
	if c.NoColor || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := c.out().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
