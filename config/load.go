package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/metagen/errors"
)

// ProjectFile is searched for upward from the working directory.
const ProjectFile = "metagen.toml"

// SystemFile is the lowest-precedence config file.
const SystemFile = "/etc/metagen/config.toml"

// Source identifies the layer a setting came from
type Source string

const (
	SourceDefault     Source = "default"
	SourceSystem      Source = "system"
	SourceUser        Source = "user"
	SourceProject     Source = "project"
	SourceFlag        Source = "flag" // file named by --config
	SourceEnvironment Source = "environment"
)

// File is a config file candidate and the layer it belongs to.
type File struct {
	Path   string
	Source Source
}

// Loaded is an effective configuration together with the viper instance
// and files that produced it.
type Loaded struct {
	Config *Config
	Files  []File // files that existed and were merged, lowest precedence first

	v       *viper.Viper
	origins map[string]File // key -> highest file that set it
}

// Viper returns the underlying viper instance
func (l *Loaded) Viper() *viper.Viper {
	return l.v
}

// SearchPaths returns the config files consulted by Load, lowest precedence
// first: system < user < project < explicit.
func SearchPaths(explicit string) []File {
	files := []File{{Path: SystemFile, Source: SourceSystem}}
	if dir := UserDir(); dir != "" {
		files = append(files, File{Path: filepath.Join(dir, "config.toml"), Source: SourceUser})
	}
	if wd, err := os.Getwd(); err == nil {
		if project := FindProjectConfig(wd); project != "" {
			files = append(files, File{Path: project, Source: SourceProject})
		}
	}
	if explicit != "" {
		files = append(files, File{Path: explicit, Source: SourceFlag})
	}
	return files
}

// UserDir returns ~/.metagen, or "" when the home directory is unknown.
func UserDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metagen")
}

// Load merges defaults, config files and METAGEN_* environment variables.
// explicit names an additional file that must exist (--config).
func Load(explicit string) (*Loaded, error) {
	return LoadFiles(SearchPaths(explicit))
}

// LoadFiles merges the given files over the defaults. Missing files are
// skipped, except those from SourceFlag.
func LoadFiles(files []File) (*Loaded, error) {
	v := newViper()
	l := &Loaded{v: v, origins: make(map[string]File)}

	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			if f.Source == SourceFlag {
				return nil, errors.WithHint(
					errors.Wrapf(errors.ErrNotFound, "config file %s", f.Path),
					"check the --config path")
			}
			continue
		}
		keys, err := mergeFile(v, f.Path)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			l.origins[k] = f
		}
		l.Files = append(l.Files, f)
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	l.Config = cfg
	return l, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, without
// environment overrides.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// FindProjectConfig walks up from start looking for metagen.toml.
// Returns "" if none is found.
func FindProjectConfig(start string) string {
	dir := start
	for {
		path := filepath.Join(dir, ProjectFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// mergeFile merges path into the config layer, which environment variables
// still override, and returns the keys it set.
func mergeFile(v *viper.Viper, path string) ([]string, error) {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	tmp.SetConfigType("toml")
	if err := tmp.ReadInConfig(); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "failed to read config file %s", path),
			"config files are TOML")
	}
	if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
		return nil, errors.Wrapf(err, "failed to merge %s", path)
	}
	keys := tmp.AllKeys()
	sort.Strings(keys)
	return keys, nil
}
