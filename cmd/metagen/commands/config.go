package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/metagen/config"
	"github.com/teranos/metagen/display"
	"github.com/teranos/metagen/errors"
)

// ConfigCmd manages metagen configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize metagen configuration",
	Long: `Show or initialize metagen configuration.

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/metagen/config.toml)
3. User config (~/.metagen/config.toml)
4. Project config (metagen.toml, searched upward from the working directory)
5. File passed with --config
6. Environment variables (METAGEN_* prefix, e.g. METAGEN_GENERATE_WORKERS)

Examples:
  metagen config show                  # effective configuration as TOML
  metagen config show --format json
  metagen config show --sources        # where each value comes from
  metagen config init                  # write ./metagen.toml with defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configSources {
			return runConfigSources(current, display.ShouldOutputJSON(cmd), cmd.OutOrStdout())
		}
		return runConfigShow(Config(), configFormat, cmd.OutOrStdout())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default values",
	Long:  "Write a config file with the default values (default path: ./metagen.toml).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ProjectFile
		if len(args) == 1 {
			path = args[0]
		}
		return runConfigInit(path, configForce, cmd.OutOrStdout())
	},
}

var (
	configFormat  string
	configSources bool
	configForce   bool
)

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	configShowCmd.Flags().BoolVar(&configSources, "sources", false, "List every setting with the layer it came from")
	configShowCmd.Flags().BoolP("json", "j", false, "With --sources, output JSON")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file (the old one is kept as .back1)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
}

func runConfigShow(cfg *config.Config, format string, out io.Writer) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# metagen configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# metagen configuration\n%s", data)

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}

func runConfigSources(l *config.Loaded, jsonOutput bool, out io.Writer) error {
	if l == nil {
		var err error
		if l, err = config.Load(""); err != nil {
			return err
		}
	}
	settings := l.Settings()
	if jsonOutput {
		return display.OutputJSON(out, settings)
	}

	rows := make([][]string, 0, len(settings))
	for _, s := range settings {
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	return display.Table(out, []string{"KEY", "VALUE", "SOURCE", "FROM"}, rows)
}

func runConfigInit(path string, force bool, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.WithHint(
			errors.Newf("%s already exists", path),
			"pass --force to overwrite it; the current file is kept as .back1")
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	fmt.Fprintf(out, "Wrote %s\n", abs)
	return nil
}
