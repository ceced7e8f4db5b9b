package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/metagen/ast"
	"github.com/teranos/metagen/config"
	"github.com/teranos/metagen/display"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
	"github.com/teranos/metagen/tags"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
	"github.com/teranos/metagen/translator"
	"github.com/teranos/metagen/watch"
)

// TranslateCmd translates one AST document
var TranslateCmd = &cobra.Command{
	Use:   "translate [path]",
	Short: "Translate an example AST into one target language",
	Long: `Translate an example AST (JSON or YAML) into source code for one target.

The AST is read from path, or from stdin when no path is given. Targets are
looked up in targets.dir first, then among the builtin targets
(python, cpp, java, octave). A path to a definition file also works.

Examples:
  metagen translate knn.json                       # python to stdout
  metagen translate -t cpp --tags shogun.ctags knn.json
  metagen translate -t ./lua.yaml -o knn.lua knn.json
  metagen translate --json knn.json                # output plus dependency sets
  metagen translate --watch -t java knn.json       # re-translate on every save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranslateCmd,
}

type translateOptions struct {
	target     string
	tagsPath   string
	output     string
	storeVars  bool
	permissive bool
	json       bool
}

var (
	translateTarget     string
	translateTags       string
	translateOutput     string
	translateStoreVars  bool
	translatePermissive bool
	translateWatch      bool
)

func init() {
	TranslateCmd.Flags().StringVarP(&translateTarget, "target", "t", "", "target name or definition file (default: targets.default)")
	TranslateCmd.Flags().StringVar(&translateTags, "tags", "", "ctags/JSON/YAML/TOML file mapping class names to include paths (default: tags.path)")
	TranslateCmd.Flags().StringVarP(&translateOutput, "output", "o", "", "write the translation to this file instead of stdout")
	TranslateCmd.Flags().BoolVar(&translateStoreVars, "store-vars", false, "append code that serializes Real/RealVector/RealMatrix variables")
	TranslateCmd.Flags().BoolVar(&translatePermissive, "permissive", false, "leave unknown template placeholders in the output")
	TranslateCmd.Flags().BoolVar(&translateWatch, "watch", false, "re-translate whenever the input, target or tags file changes")
	TranslateCmd.Flags().BoolP("json", "j", false, "print the result and dependency sets as JSON")
}

func runTranslateCmd(cmd *cobra.Command, args []string) error {
	cfg := Config()
	opts := translateOptions{
		target:     translateTarget,
		tagsPath:   translateTags,
		output:     translateOutput,
		storeVars:  translateStoreVars || cfg.Translate.StoreVars,
		permissive: translatePermissive || cfg.Translate.Permissive,
		json:       display.ShouldOutputJSON(cmd),
	}
	if opts.target == "" {
		opts.target = cfg.DefaultTarget()
	}
	if opts.tagsPath == "" {
		opts.tagsPath = cfg.Tags.Path
	}

	var path string
	if len(args) == 1 {
		path = args[0]
	}

	if translateWatch {
		return watchTranslate(cmd.Context(), cfg, opts, path, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	return translateOnce(cmd.Context(), cfg, opts, path, cmd.InOrStdin(), cmd.OutOrStdout())
}

// stdinProgram names programs read from stdin without a FilePath
const stdinProgram = "stdin"

// translateResult is the --json shape
type translateResult struct {
	Target  string `json:"target"`
	Program string `json:"program"`
	*translator.Result
}

// translateOnce resolves the target before reading any input, so a missing
// target aborts without touching the AST.
func translateOnce(ctx context.Context, cfg *config.Config, opts translateOptions, path string, in io.Reader, out io.Writer) error {
	def, err := target.NewRegistry(cfg.Targets.Dir).Resolve(opts.target)
	if err != nil {
		return err
	}

	var tm tags.Map
	if opts.tagsPath != "" {
		if tm, err = tags.Load(opts.tagsPath, cfg.Tags.Root); err != nil {
			return err
		}
	}

	f, err := readAST(path, in)
	if err != nil {
		return err
	}

	mode := tmpl.Strict
	if opts.permissive {
		mode = tmpl.Permissive
	}
	tr, err := translator.New(def, translator.Options{Mode: mode})
	if err != nil {
		return err
	}

	p := translator.Params{Tags: tm, StoreVars: opts.storeVars}
	if f.FilePath == "" {
		if path != "" {
			p.ProgramName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		} else {
			p.ProgramName = stdinProgram
			logger.Warnw("AST from stdin has no FilePath, using fallback program name",
				logger.FieldProgram, stdinProgram)
		}
	}
	res, err := tr.TranslateFile(ctx, f, p)
	if err != nil {
		return err
	}

	if opts.json {
		program := p.ProgramName
		if program == "" {
			program = f.ProgramName()
		}
		return display.OutputJSON(out, translateResult{Target: def.Name, Program: program, Result: res})
	}

	if opts.output != "" {
		if dir := filepath.Dir(opts.output); dir != "." {
			if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
				return errors.Wrapf(err, "create %s", dir)
			}
		}
		if err := os.WriteFile(opts.output, []byte(res.Output), 0644); err != nil {
			return errors.Wrapf(err, "write %s", opts.output)
		}
		logger.Infow("Translation written", logger.FieldTarget, def.Name, logger.FieldOutput, opts.output)
		return nil
	}

	_, err = io.WriteString(out, res.Output)
	return err
}

func readAST(path string, in io.Reader) (*ast.File, error) {
	if path != "" {
		return ast.ReadFile(path)
	}
	if in == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no input")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.Wrap(err, "read AST from stdin")
	}
	f, err := ast.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode AST from stdin")
	}
	return f, nil
}

func watchTranslate(ctx context.Context, cfg *config.Config, opts translateOptions, path string, out, status io.Writer) error {
	if path == "" {
		return errors.WithHint(
			errors.Wrap(errors.ErrInvalidInput, "--watch needs an input path"),
			"stdin cannot be watched; pass the AST file as an argument")
	}

	w, err := watch.New([]string{path, opts.tagsPath, targetFile(cfg, opts.target)})
	if err != nil {
		return err
	}

	translate := func(ctx context.Context, _ []string) error {
		return translateOnce(ctx, cfg, opts, path, nil, out)
	}
	if err := translate(ctx, nil); err != nil {
		logger.Errorw("Translation failed", logger.FieldError, errors.UserMessage(err))
	}

	pterm.Info.WithWriter(status).Printfln("Watching %d files (Ctrl+C to stop)", len(w.Files()))
	return w.Run(ctx, translate)
}

// targetFile returns the definition file behind name, or "" for builtin
// targets.
func targetFile(cfg *config.Config, name string) string {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name
	}
	entries, err := target.NewRegistry(cfg.Targets.Dir).List()
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Name == name && e.Source != target.SourceBuiltin {
			return e.Path
		}
	}
	return ""
}
