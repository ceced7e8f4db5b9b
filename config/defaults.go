package config

import "github.com/spf13/viper"

// DefaultDirPermissions is used for ~/.metagen and generated output dirs.
const DefaultDirPermissions = 0750

// EnvPrefix prefixes every environment override, e.g. METAGEN_TARGETS_DEFAULT.
const EnvPrefix = "METAGEN"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("targets.dir", "")
	v.SetDefault("targets.default", "python")

	v.SetDefault("tags.path", "")
	v.SetDefault("tags.root", "shogun")

	v.SetDefault("translate.store_vars", false)
	v.SetDefault("translate.permissive", false)

	v.SetDefault("generate.output", "generated")
	v.SetDefault("generate.targets", []string{"python", "cpp", "java", "octave"})
	v.SetDefault("generate.workers", 0)
	v.SetDefault("generate.cache", "")
	v.SetDefault("generate.formatters", map[string]string{})

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}
