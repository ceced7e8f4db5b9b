package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/metagen/cmd/metagen/commands"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "metagen",
	Short: "Translate meta-example ASTs into target-language source",
	Long: `metagen - template-driven translator for meta examples.

Each example program is written once as a language-neutral AST. metagen
renders it for every target language from that target's template bundle,
collects the classes and enums it references and emits the matching
imports or includes.

Available commands:
  translate - Translate one AST for one target
  generate  - Translate a directory of ASTs for several targets
  targets   - List available targets
  config    - Show or initialize configuration
  cache     - Inspect or prune the translation cache
  version   - Show build information

Examples:
  metagen translate -t java knn.json
  metagen generate -o generated examples/meta/ast
  metagen targets`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		configPath, _ := cmd.Flags().GetString("config")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		return commands.Setup(configPath, verbosity, jsonLogs)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().String("config", "", "Additional config file, merged above project config")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.TranslateCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.TargetsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.CacheCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserMessage(err))
		os.Exit(1)
	}
}
