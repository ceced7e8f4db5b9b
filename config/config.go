// Package config loads metagen settings from TOML files and METAGEN_*
// environment variables.
package config

import (
	"fmt"
	"runtime"
)

// Config is the effective metagen configuration.
type Config struct {
	Targets   TargetsConfig   `mapstructure:"targets" toml:"targets"`
	Tags      TagsConfig      `mapstructure:"tags" toml:"tags"`
	Translate TranslateConfig `mapstructure:"translate" toml:"translate"`
	Generate  GenerateConfig  `mapstructure:"generate" toml:"generate"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
}

// TargetsConfig locates target definitions
type TargetsConfig struct {
	Dir     string `mapstructure:"dir" toml:"dir"`         // definitions here shadow the builtin ones
	Default string `mapstructure:"default" toml:"default"` // used when --target is omitted (default: python)
}

// TagsConfig locates include-path tags
type TagsConfig struct {
	Path string `mapstructure:"path" toml:"path"` // ctags, JSON, YAML or TOML file
	Root string `mapstructure:"root" toml:"root"` // ctags locations are trimmed after "<root>/" (default: shogun)
}

// TranslateConfig sets translation defaults
type TranslateConfig struct {
	StoreVars  bool `mapstructure:"store_vars" toml:"store_vars"` // append the storage epilogue
	Permissive bool `mapstructure:"permissive" toml:"permissive"` // leave unknown placeholders in the output
}

// GenerateConfig configures batch generation
type GenerateConfig struct {
	Output  string   `mapstructure:"output" toml:"output"`
	Targets []string `mapstructure:"targets" toml:"targets"`
	Workers int      `mapstructure:"workers" toml:"workers"` // 0 = one per CPU
	Cache   string   `mapstructure:"cache" toml:"cache"`     // SQLite path; empty disables caching

	// Formatters maps a target name to a command run on each generated file,
	// e.g. cpp = "clang-format -i"
	Formatters map[string]string `mapstructure:"formatters" toml:"formatters"`
}

// LogConfig configures console logging
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Theme string `mapstructure:"theme" toml:"theme"` // gruvbox, everforest, plain
}

// DefaultTarget returns the configured default target (default: python)
func (c *Config) DefaultTarget() string {
	if c.Targets.Default == "" {
		return "python"
	}
	return c.Targets.Default
}

// WorkerCount resolves generate.workers, where 0 means one per CPU.
func (c *Config) WorkerCount() int {
	if c.Generate.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Generate.Workers
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Targets: {Dir: %s, Default: %s}, Generate: {Output: %s, Workers: %d}}",
		c.Targets.Dir, c.DefaultTarget(), c.Generate.Output, c.Generate.Workers)
}
