package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/netresearch/zrunner/core"
)

// ValidateCommand validates the config file
type ValidateCommand struct {
	ConfigFile string `long:"config" short:"c" env:"ZRUNNER_CONFIG" description:"configuration file" default:"zrunner.ini"`
	LogLevel   string `long:"log-level" env:"ZRUNNER_LOG_LEVEL" description:"Set log level (overrides config)"`
	Logger     core.Logger
	Out        io.Writer
}

// Execute runs the validation command
func (c *ValidateCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)
	c.Logger.Debugf("Validating %q ... ", c.ConfigFile)
	conf, err := BuildFromFile(c.ConfigFile, c.Logger)
	if err != nil {
		c.Logger.Errorf("ERROR")
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(conf.Global.LogLevel)
	}
	if err := conf.Validate(); err != nil {
		c.Logger.Errorf("ERROR")
		return err
	}

	out, err := json.MarshalIndent(conf.Global, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	w := c.Out
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w, string(out))

	c.Logger.Noticef("Validated %s", conf.Path())
	return nil
}
