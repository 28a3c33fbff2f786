package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	ini "gopkg.in/ini.v1"

	"github.com/netresearch/zrunner/cli"
	"github.com/netresearch/zrunner/core"
)

var version string
var build string

// buildLogger logs to stderr so that stdout only carries reports.
func buildLogger(level string) core.Logger {
	logrus.SetOutput(os.Stderr)
	logrus.SetReportCaller(true)
	forceColors := false
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb" && os.Getenv("NO_COLOR") == "" {
		forceColors = true
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     forceColors,
		DisableQuote:    true,
		TimestampFormat: "2006-01-02 15:04:05",
		CallerPrettyfier: func(frame *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		},
	})
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	return core.NewLogrusAdapter(logrus.StandardLogger())
}

func main() {
	// Pre-parse log-level flag to configure logger early
	var pre struct {
		LogLevel   string `long:"log-level" env:"ZRUNNER_LOG_LEVEL"`
		ConfigFile string `long:"config" short:"c" env:"ZRUNNER_CONFIG"`
	}
	args := os.Args[1:]
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	if pre.LogLevel == "" && pre.ConfigFile != "" {
		cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, pre.ConfigFile)
		if err == nil {
			if sec, err := cfg.GetSection("global"); err == nil {
				pre.LogLevel = sec.Key("log-level").String()
			}
		}
	}

	logger := buildLogger(pre.LogLevel)

	parser := flags.NewNamedParser("zrunner", flags.Default)
	parser.AddCommand(
		"run",
		"discover and run tests",
		"Discovers test modules under the given path, runs every unit between its hooks and reports the result.",
		&cli.RunCommand{Logger: logger},
	)
	parser.AddCommand(
		"list",
		"list discovered tests",
		"Prints the modules, hooks and units a run would execute without running them.",
		&cli.ListCommand{Logger: logger},
	)
	parser.AddCommand(
		"validate",
		"validates the config file",
		"",
		&cli.ValidateCommand{Logger: logger},
	)

	_, err := parser.ParseArgs(args)
	code := cli.ExitCode(err)
	if code == cli.ExitUsage {
		if _, ok := err.(*flags.Error); ok {
			parser.WriteHelp(os.Stderr)
			fmt.Fprintf(os.Stderr, "\nBuild information\n  commit: %s\n  date:%s\n", version, build)
		} else {
			logger.Errorf("%v", err)
		}
	}
	os.Exit(code)
}
