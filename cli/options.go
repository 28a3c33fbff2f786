package cli

import (
	"fmt"

	"github.com/netresearch/zrunner/core"
)

// DiscoveryOptions are the flags shared by the commands that discover tests.
// Set flags override the configuration file.
type DiscoveryOptions struct {
	ConfigFile string `long:"config" short:"c" env:"ZRUNNER_CONFIG" description:"configuration file"`
	LogLevel   string `long:"log-level" env:"ZRUNNER_LOG_LEVEL" description:"log level (overrides config)"`

	Naming         string `long:"naming" env:"ZRUNNER_NAMING" choice:"substring" choice:"convention" description:"naming convention for modules and units"`
	IncludeModules string `long:"include-modules" env:"ZRUNNER_INCLUDE_MODULES" description:"only modules whose path matches this expression"`
	ExcludeModules string `long:"exclude-modules" env:"ZRUNNER_EXCLUDE_MODULES" description:"skip modules whose path matches this expression"`
	IncludeUnits   string `long:"include-units" env:"ZRUNNER_INCLUDE_UNITS" description:"only units whose name matches this expression"`
	ExcludeUnits   string `long:"exclude-units" env:"ZRUNNER_EXCLUDE_UNITS" description:"skip units whose name matches this expression"`
	Select         string `long:"select" short:"k" env:"ZRUNNER_SELECT" description:"run a single unit, module/path:unit_name"`

	Interpreter string   `long:"interpreter" env:"ZRUNNER_INTERPRETER" description:"command line used to run shell functions"`
	Env         []string `long:"env" short:"e" env:"ZRUNNER_ENV" env-delim:"," description:"extra environment for every step, KEY=VALUE"`
}

// loadConfig reads the configuration file, if any, and applies the flags
// over it. The log level is applied as soon as it is known.
func (o *DiscoveryOptions) loadConfig(logger core.Logger) (*Config, error) {
	ApplyLogLevel(o.LogLevel)

	conf := NewConfig(logger)
	if o.ConfigFile != "" {
		var err error
		if conf, err = BuildFromFile(o.ConfigFile, logger); err != nil {
			return nil, err
		}
	}

	g := &conf.Global
	override(&g.LogLevel, o.LogLevel)
	override(&g.Naming, o.Naming)
	override(&g.IncludeModules, o.IncludeModules)
	override(&g.ExcludeModules, o.ExcludeModules)
	override(&g.IncludeUnits, o.IncludeUnits)
	override(&g.ExcludeUnits, o.ExcludeUnits)
	override(&g.Interpreter, o.Interpreter)
	g.Env = append(g.Env, o.Env...)

	if o.LogLevel == "" {
		ApplyLogLevel(g.LogLevel)
	}
	return conf, nil
}

// newDiscovery builds the discovery configured by g.
func (o *DiscoveryOptions) newDiscovery(g *Global, logger core.Logger) (*core.Discovery, error) {
	naming, err := core.NewMatcher(g.Naming)
	if err != nil {
		return nil, fmt.Errorf("naming: %w", err)
	}

	loaders := core.NewLoaderRegistry(
		&core.ScriptLoader{Interpreter: g.Interpreter, Environment: g.Env},
		&core.ManifestLoader{Environment: g.Env},
	)

	d := core.NewDiscovery(logger, loaders)
	d.Modules = naming
	d.Units = naming
	d.Filter = core.Filter{
		IncludeModules: g.IncludeModules,
		ExcludeModules: g.ExcludeModules,
		IncludeUnits:   g.IncludeUnits,
		ExcludeUnits:   g.ExcludeUnits,
		Select:         o.Select,
	}
	return d, nil
}

func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
