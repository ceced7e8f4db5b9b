package config

import (
	"github.com/kballard/go-shellquote"

	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Targets.Default == "" {
		return errors.New("targets.default cannot be empty")
	}

	// Workers: 0 = one per CPU, negative = invalid
	if c.Generate.Workers < 0 {
		return errors.Newf("generate.workers must be >= 0, got %d", c.Generate.Workers)
	}
	if c.Generate.Output == "" {
		return errors.New("generate.output cannot be empty")
	}
	for i, name := range c.Generate.Targets {
		if name == "" {
			return errors.Newf("generate.targets[%d] cannot be empty", i)
		}
	}

	for target, command := range c.Generate.Formatters {
		argv, err := shellquote.Split(command)
		if err != nil {
			return errors.Wrapf(err, "generate.formatters.%s", target)
		}
		if len(argv) == 0 {
			return errors.Newf("generate.formatters.%s cannot be empty", target)
		}
	}

	if c.Log.Theme != "" && !logger.HasTheme(c.Log.Theme) {
		return errors.WithHint(
			errors.Newf("log.theme %q is not a known theme", c.Log.Theme),
			"use gruvbox, everforest or plain")
	}
	return nil
}
