// Package commands implements the metagen subcommands.
package commands

import (
	"github.com/teranos/metagen/config"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
)

var current *config.Loaded

// Setup loads the configuration and initializes the global logger. It runs
// before every subcommand.
func Setup(configPath string, verbosity int, jsonLogs bool) error {
	l, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := l.Config.Validate(); err != nil {
		return errors.WithHint(
			errors.Wrap(err, "invalid configuration"),
			"run `metagen config show --sources` to see where each value comes from")
	}

	if l.Config.Log.Theme != "" {
		logger.SetTheme(l.Config.Log.Theme)
	}
	if err := logger.Initialize(jsonLogs || l.Config.Log.JSON, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	current = l
	logger.Debugw("Logger initialized", "verbosity", logger.LevelName(verbosity))
	for _, f := range l.Files {
		logger.Debugw("Config file merged", logger.FieldPath, f.Path, "source", f.Source)
	}
	if logger.ShouldLogTrace(verbosity) {
		for _, s := range l.Settings() {
			logger.Debugw("Config setting", "key", s.Key, "value", s.Value, "source", s.Source)
		}
	}
	return nil
}

// Config returns the configuration loaded by Setup, or the defaults.
func Config() *config.Config {
	if current == nil {
		return config.Default()
	}
	return current.Config
}
