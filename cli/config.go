package cli

import (
	"fmt"
	"time"

	defaults "github.com/creasty/defaults"
	ini "gopkg.in/ini.v1"

	"github.com/netresearch/zrunner/core"
	"github.com/netresearch/zrunner/middlewares"
	"github.com/netresearch/zrunner/reporting"
)

const globalSection = "global"

// Global holds every setting of the [global] section.
type Global struct {
	middlewares.SaveConfig `mapstructure:",squash"`
	reporting.MailConfig   `mapstructure:",squash"`

	LogLevel string `mapstructure:"log-level" validate:"omitempty,oneof=trace debug info notice warning warn error fatal panic"`

	Parallel   int           `mapstructure:"parallel" default:"1" validate:"gte=1,lte=256"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"duration_gte=0s"`
	RunTimeout time.Duration `mapstructure:"run-timeout" validate:"duration_gte=0s"`
	FailFast   bool          `mapstructure:"fail-fast"`

	Naming         string `mapstructure:"naming" default:"substring" validate:"oneof=substring convention"`
	IncludeModules string `mapstructure:"include-modules" validate:"omitempty,regexp"`
	ExcludeModules string `mapstructure:"exclude-modules" validate:"omitempty,regexp"`
	IncludeUnits   string `mapstructure:"include-units" validate:"omitempty,regexp"`
	ExcludeUnits   string `mapstructure:"exclude-units" validate:"omitempty,regexp"`

	Interpreter string   `mapstructure:"interpreter" default:"bash" validate:"required"`
	Env         []string `mapstructure:"env" validate:"dive,envpair"`

	JUnitFile      string `mapstructure:"junit-file"`
	JUnitSuiteName string `mapstructure:"junit-suite-name" default:"zrunner"`
	JSONFile       string `mapstructure:"json-file"`
	MetricsFile    string `mapstructure:"metrics-file"`
}

// Config contains the configuration
type Config struct {
	Global Global

	configPath string
	warnings   []UnknownKeyWarning
	logger     core.Logger
}

func NewConfig(logger core.Logger) *Config {
	c := &Config{logger: logger}
	_ = defaults.Set(c)
	return c
}

// BuildFromFile loads the configuration from an INI file.
func BuildFromFile(filename string, logger core.Logger) (*Config, error) {
	c := NewConfig(logger)
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, filename)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", filename, err)
	}
	if err := parseIni(cfg, c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", filename, err)
	}
	c.configPath = filename
	logger.Debugf("loaded config file %s", filename)
	return c, nil
}

// BuildFromString loads the configuration from INI text.
func BuildFromString(config string, logger core.Logger) (*Config, error) {
	c := NewConfig(logger)
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, []byte(config))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := parseIni(cfg, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// Warnings returns the unknown keys found while parsing.
func (c *Config) Warnings() []UnknownKeyWarning {
	return c.warnings
}

// Validate checks every setting and logs unknown keys.
func (c *Config) Validate() error {
	for _, w := range c.warnings {
		if w.Suggestion != "" {
			c.logger.Warningf("Unknown key %q in [%s], did you mean %q?", w.Key, w.Section, w.Suggestion)
			continue
		}
		c.logger.Warningf("Unknown key %q in [%s]", w.Key, w.Section)
	}

	return ValidateConfig(c.Global)
}

func parseIni(cfg *ini.File, c *Config) error {
	sec, err := cfg.GetSection(globalSection)
	if err != nil {
		return nil
	}

	res, err := decodeWithMetadata(sectionToMap(sec), &c.Global)
	if err != nil {
		return err
	}
	c.warnings = GenerateUnknownKeyWarnings(globalSection, res.UnusedKeys, knownKeys(&c.Global))
	return nil
}

// sectionToMap turns a section into a decoder input; shadowed keys become
// string slices.
func sectionToMap(section *ini.Section) map[string]any {
	m := make(map[string]any)
	for _, key := range section.Keys() {
		vals := key.ValueWithShadows()
		switch {
		case len(vals) > 1:
			m[key.Name()] = append([]string(nil), vals...)
		case len(vals) == 1:
			m[key.Name()] = vals[0]
		default:
			m[key.Name()] = ""
		}
	}
	return m
}
