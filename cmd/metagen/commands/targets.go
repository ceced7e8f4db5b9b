package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/metagen/config"
	"github.com/teranos/metagen/display"
	"github.com/teranos/metagen/target"
)

// TargetsCmd lists the available targets
var TargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List available translation targets",
	Long: `List builtin targets and those found in targets.dir. A definition in
targets.dir shadows the builtin target of the same name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(Config(), display.ShouldOutputJSON(cmd), cmd.OutOrStdout())
	},
}

func init() {
	TargetsCmd.Flags().BoolP("json", "j", false, "Output targets as JSON")
}

func runTargets(cfg *config.Config, jsonOutput bool, out io.Writer) error {
	entries, err := target.NewRegistry(cfg.Targets.Dir).List()
	if err != nil {
		return err
	}
	if jsonOutput {
		return display.OutputJSON(out, entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, string(e.Source), e.Path})
	}
	return display.Table(out, []string{"NAME", "SOURCE", "PATH"}, rows)
}
