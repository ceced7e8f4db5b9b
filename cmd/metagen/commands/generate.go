package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/metagen/cache"
	"github.com/teranos/metagen/config"
	"github.com/teranos/metagen/display"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/generate"
	"github.com/teranos/metagen/logger"
	"github.com/teranos/metagen/tags"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
)

// GenerateCmd translates a directory of ASTs into several targets
var GenerateCmd = &cobra.Command{
	Use:   "generate <ast-dir>",
	Short: "Translate every AST in a directory into every target",
	Long: `Translate every *.json, *.yaml and *.yml AST under ast-dir into each
target, writing <output>/<target>/<relative path>/<name>.<ext>.

Translations whose inputs are unchanged are served from the cache when
generate.cache is set. Formatters from generate.formatters run on every
written file.

Examples:
  metagen generate examples/meta/ast
  metagen generate -t python,octave -o out examples/meta/ast
  metagen generate --check -o examples/meta/generated examples/meta/ast`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateCmd,
}

type generateOptions struct {
	output     string
	targets    []string
	tagsPath   string
	storeVars  bool
	permissive bool
	workers    int
	cachePath  string
	check      bool
	json       bool
}

var (
	generateOutput     string
	generateTargets    []string
	generateTags       string
	generateStoreVars  bool
	generatePermissive bool
	generateWorkers    int
	generateCache      string
	generateNoCache    bool
	generateCheck      bool
)

func init() {
	GenerateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output directory (default: generate.output)")
	GenerateCmd.Flags().StringSliceVarP(&generateTargets, "target", "t", nil, "targets to generate (default: generate.targets)")
	GenerateCmd.Flags().StringVar(&generateTags, "tags", "", "include-path tags file (default: tags.path)")
	GenerateCmd.Flags().BoolVar(&generateStoreVars, "store-vars", false, "append variable storage code")
	GenerateCmd.Flags().BoolVar(&generatePermissive, "permissive", false, "leave unknown template placeholders in the output")
	GenerateCmd.Flags().IntVarP(&generateWorkers, "workers", "w", 0, "concurrent translations (default: generate.workers, 0 = one per CPU)")
	GenerateCmd.Flags().StringVar(&generateCache, "cache", "", "SQLite translation cache (default: generate.cache)")
	GenerateCmd.Flags().BoolVar(&generateNoCache, "no-cache", false, "do not read or write the translation cache")
	GenerateCmd.Flags().BoolVar(&generateCheck, "check", false, "compare with the existing output instead of writing it")
	GenerateCmd.Flags().BoolP("json", "j", false, "print the report as JSON")
}

func runGenerateCmd(cmd *cobra.Command, args []string) error {
	cfg := Config()
	opts := generateOptions{
		output:     generateOutput,
		targets:    generateTargets,
		tagsPath:   generateTags,
		storeVars:  generateStoreVars || cfg.Translate.StoreVars,
		permissive: generatePermissive || cfg.Translate.Permissive,
		workers:    generateWorkers,
		cachePath:  generateCache,
		check:      generateCheck,
		json:       display.ShouldOutputJSON(cmd),
	}
	if opts.output == "" {
		opts.output = cfg.Generate.Output
	}
	if len(opts.targets) == 0 {
		opts.targets = cfg.Generate.Targets
	}
	if opts.tagsPath == "" {
		opts.tagsPath = cfg.Tags.Path
	}
	if opts.workers == 0 {
		opts.workers = cfg.WorkerCount()
	}
	if opts.cachePath == "" {
		opts.cachePath = cfg.Generate.Cache
	}
	if generateNoCache {
		opts.cachePath = ""
	}
	return runGenerate(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout())
}

func runGenerate(ctx context.Context, cfg *config.Config, opts generateOptions, dir string, out io.Writer) error {
	formatters, err := generate.ParseFormatters(cfg.Generate.Formatters)
	if err != nil {
		return err
	}
	genOpts := []generate.Option{
		generate.WithWorkers(opts.workers),
		generate.WithFormatters(formatters),
	}

	if opts.cachePath != "" {
		store, err := cache.OpenStore(opts.cachePath, logger.ComponentLogger("cache"))
		if err != nil {
			return errors.WithHint(err, "pass --no-cache to generate without the cache")
		}
		defer store.Close()
		genOpts = append(genOpts, generate.WithCache(store))
	}

	var tm tags.Map
	if opts.tagsPath != "" {
		if tm, err = tags.Load(opts.tagsPath, cfg.Tags.Root); err != nil {
			return err
		}
	}

	mode := tmpl.Strict
	if opts.permissive {
		mode = tmpl.Permissive
	}
	job := generate.Job{
		InputDir:  dir,
		OutputDir: opts.output,
		Targets:   opts.targets,
		Tags:      tm,
		StoreVars: opts.storeVars,
		Mode:      mode,
	}
	g := generate.New(target.NewRegistry(cfg.Targets.Dir), genOpts...)

	if opts.check {
		return runCheck(ctx, g, job, opts, out)
	}

	report, err := g.Run(ctx, job)
	if report == nil {
		return err
	}
	if opts.json {
		if jerr := display.OutputJSON(out, report); jerr != nil {
			return jerr
		}
		return err
	}
	if perr := printReport(out, report); perr != nil {
		return perr
	}
	return err
}

func runCheck(ctx context.Context, g *generate.Generator, job generate.Job, opts generateOptions, out io.Writer) error {
	result, err := g.Check(ctx, job, opts.output)
	if err != nil {
		return err
	}
	if opts.json {
		if err := display.OutputJSON(out, result); err != nil {
			return err
		}
	} else if !result.UpToDate {
		var rows [][]string
		for _, name := range job.Targets {
			for _, f := range result.Differences[name] {
				rows = append(rows, []string{name, f, "differs"})
			}
			for _, f := range result.Stale[name] {
				rows = append(rows, []string{name, f, "stale"})
			}
		}
		if err := display.Table(out, []string{"TARGET", "FILE", "STATUS"}, rows); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s is up to date\n", opts.output)
	}

	if !result.UpToDate {
		return errors.WithHint(
			errors.Newf("generated output in %s is out of date", opts.output),
			"run `metagen generate` without --check to regenerate")
	}
	return nil
}

func printReport(out io.Writer, report *generate.Report) error {
	written, cached, failed := report.Counts()
	if failed > 0 {
		var rows [][]string
		for _, f := range report.Files {
			if f.Error == "" {
				continue
			}
			msg := f.Error
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			rows = append(rows, []string{f.Input, f.Target, msg})
		}
		if err := display.Table(out, []string{"INPUT", "TARGET", "ERROR"}, rows); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "%d written, %d cached, %d failed in %dms\n", written, cached, failed, report.DurationMS)
	return err
}
