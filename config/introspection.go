package config

import (
	"os"
	"sort"
	"strings"
)

// Setting is one effective key with the layer that supplied it.
type Setting struct {
	Key        string      `json:"key"`
	Value      interface{} `json:"value"`
	Source     Source      `json:"source"`
	SourcePath string      `json:"source_path,omitempty"` // file path or env var name
}

// Settings returns every effective setting sorted by key.
func (l *Loaded) Settings() []Setting {
	keys := l.v.AllKeys()
	sort.Strings(keys)

	settings := make([]Setting, 0, len(keys))
	for _, key := range keys {
		s := Setting{Key: key, Value: l.v.Get(key), Source: SourceDefault}
		if f, ok := l.origins[key]; ok {
			s.Source = f.Source
			s.SourcePath = f.Path
		}
		if name := EnvVar(key); envSet(name) {
			s.Source = SourceEnvironment
			s.SourcePath = name
		}
		settings = append(settings, s)
	}
	return settings
}

// EnvVar returns the environment variable overriding key,
// e.g. generate.workers -> METAGEN_GENERATE_WORKERS.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}
