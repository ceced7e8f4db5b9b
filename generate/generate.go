// Package generate translates a directory of example ASTs into every
// requested target and writes the results as an output tree:
//
//	<output>/<target>/<relative dir>/<name>.<ext>
package generate

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/metagen/ast"
	"github.com/teranos/metagen/cache"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
	"github.com/teranos/metagen/tags"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
	"github.com/teranos/metagen/translator"
)

// ErrFailed marks a run in which at least one translation failed. The
// report is still returned alongside it.
var ErrFailed = errors.New("generation failed")

// InputExtensions are the AST file extensions picked up by Discover.
var InputExtensions = []string{".json", ".yaml", ".yml"}

// Job describes one batch run.
type Job struct {
	InputDir  string
	OutputDir string
	Targets   []string
	Tags      tags.Map
	StoreVars bool
	Mode      tmpl.Mode
}

// FileResult is the outcome of translating one input for one target.
type FileResult struct {
	Input  string `json:"input"` // relative to Job.InputDir
	Target string `json:"target"`
	Output string `json:"output,omitempty"`
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`

	err error
}

// Err returns the translation error, if any.
func (r FileResult) Err() error {
	return r.err
}

// Report summarizes a run. Files are ordered by input, then by the order
// of Job.Targets.
type Report struct {
	RunID      string       `json:"run_id"`
	Files      []FileResult `json:"files"`
	DurationMS int64        `json:"duration_ms"`
}

// Counts returns the number of written (freshly translated), cached and
// failed results.
func (r *Report) Counts() (written, cached, failed int) {
	for _, f := range r.Files {
		switch {
		case f.err != nil || f.Error != "":
			failed++
		case f.Cached:
			cached++
		default:
			written++
		}
	}
	return written, cached, failed
}

// Generator runs batch jobs. A Generator may run jobs concurrently.
type Generator struct {
	registry   *target.Registry
	cache      *cache.Store
	formatters map[string]*Formatter
	workers    int
	log        *zap.SugaredLogger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache reuses translations whose inputs are unchanged.
func WithCache(s *cache.Store) Option {
	return func(g *Generator) { g.cache = s }
}

// WithFormatters runs a formatter on every file written for its target.
func WithFormatters(f map[string]*Formatter) Option {
	return func(g *Generator) { g.formatters = f }
}

// WithWorkers bounds the number of inputs translated concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLogger replaces the "generate" component logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(g *Generator) { g.log = l }
}

// New creates a generator resolving targets through reg.
func New(reg *target.Registry, opts ...Option) *Generator {
	g := &Generator{
		registry: reg,
		workers:  1,
		log:      logger.ComponentLogger("generate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type compiled struct {
	name    string
	tr      *translator.Translator
	defJSON []byte
}

// Run translates every input of job for every target. All targets are
// resolved before any work starts. A failing translation does not stop
// the others; the run then returns the report with an error marked
// ErrFailed.
func (g *Generator) Run(ctx context.Context, job Job) (*Report, error) {
	if job.InputDir == "" || job.OutputDir == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "input and output directories are required")
	}
	if len(job.Targets) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no targets requested")
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := g.log.With(logger.FieldRunID, runID)

	targets, err := g.compile(job, log)
	if err != nil {
		return nil, err
	}
	inputs, err := Discover(job.InputDir)
	if err != nil {
		return nil, err
	}
	tagsKey, err := json.Marshal(job.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "encode tags")
	}

	log.Infow("Generating",
		logger.FieldCount, len(inputs),
		logger.FieldTarget, strings.Join(job.Targets, ","),
		logger.FieldOutput, job.OutputDir)

	results := make([]FileResult, len(inputs)*len(targets))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, rel := range inputs {
		slot := results[i*len(targets) : (i+1)*len(targets)]
		eg.Go(func() error {
			return g.file(egctx, job, rel, targets, tagsKey, slot)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      runID,
		Files:      results,
		DurationMS: time.Since(start).Milliseconds(),
	}
	written, cached, failed := report.Counts()
	log.Infow("Generation finished",
		"written", written,
		"cached", cached,
		"failed", failed,
		logger.FieldDurationMS, report.DurationMS)

	if failed > 0 {
		err := errors.Newf("%d of %d translations failed", failed, len(results))
		for _, r := range results {
			if r.err != nil {
				err = errors.WithDetailf(err, "%s [%s]: %s", r.Input, r.Target, r.Error)
			}
		}
		return report, errors.Mark(err, ErrFailed)
	}
	return report, nil
}

func (g *Generator) compile(job Job, log *zap.SugaredLogger) ([]compiled, error) {
	targets := make([]compiled, 0, len(job.Targets))
	for _, name := range job.Targets {
		def, err := g.registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		tr, err := translator.New(def, translator.Options{Mode: job.Mode, Logger: log.Named(name)})
		if err != nil {
			return nil, err
		}
		defJSON, err := json.Marshal(def)
		if err != nil {
			return nil, errors.Wrapf(err, "encode target %s", name)
		}
		targets = append(targets, compiled{name: name, tr: tr, defJSON: defJSON})
	}
	return targets, nil
}

// file translates one input for every target into out. Only context
// cancellation is returned; translation failures are recorded in out.
func (g *Generator) file(ctx context.Context, job Job, rel string, targets []compiled, tagsKey []byte, out []FileResult) error {
	path := filepath.Join(job.InputDir, rel)
	data, readErr := os.ReadFile(path)

	var (
		decoded   *ast.File
		decodeErr error
		done      bool
	)
	decode := func() (*ast.File, error) {
		if !done {
			done = true
			decoded, decodeErr = decodeInput(rel, data)
		}
		return decoded, decodeErr
	}

	for j, c := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := FileResult{Input: rel, Target: c.name}
		if readErr != nil {
			res.err = errors.Wrapf(readErr, "read %s", path)
		} else {
			res.Output, res.Cached, res.err = g.translate(ctx, job, rel, data, decode, c, tagsKey)
		}
		if res.err != nil {
			res.Error = errors.UserMessage(res.err)
			logger.LoggerFromContext(ctx).Warnw("Translation failed",
				logger.FieldFile, rel,
				logger.FieldTarget, c.name,
				logger.FieldError, res.Error)
		}
		out[j] = res
	}
	return nil
}

func (g *Generator) translate(ctx context.Context, job Job, rel string, data []byte, decode func() (*ast.File, error), c compiled, tagsKey []byte) (string, bool, error) {
	def := c.tr.Target()
	outPath := filepath.Join(job.OutputDir, c.name, strings.TrimSuffix(rel, filepath.Ext(rel))+"."+def.Extension())

	// an AST without FilePath takes its program name from the input file,
	// and that name reaches $programName and the epilogue
	fallbackName := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	key := cache.Key(
		[]byte(target.FormatVersion),
		c.defJSON,
		data,
		[]byte(fallbackName),
		tagsKey,
		[]byte(strconv.FormatBool(job.StoreVars)),
		[]byte(job.Mode.String()),
	)

	output, cached := g.lookup(ctx, key)
	if !cached {
		f, err := decode()
		if err != nil {
			return "", false, err
		}
		p := translator.Params{Tags: job.Tags, StoreVars: job.StoreVars}
		if f.FilePath == "" {
			p.ProgramName = fallbackName
		}
		res, err := c.tr.TranslateFile(ctx, f, p)
		if err != nil {
			return "", false, errors.Wrapf(err, "translate %s to %s", rel, c.name)
		}
		output = res.Output
		g.store(ctx, key, c.name, p.ProgramName, f, res)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0750); err != nil {
		return "", cached, errors.Wrapf(err, "create %s", filepath.Dir(outPath))
	}
	if err := os.WriteFile(outPath, []byte(output), 0644); err != nil {
		return "", cached, errors.Wrapf(err, "write %s", outPath)
	}
	if f, ok := g.formatters[c.name]; ok {
		if err := f.Format(ctx, outPath); err != nil {
			return outPath, cached, err
		}
	}
	return outPath, cached, nil
}

// lookup returns the cached output for key. Cache failures are logged and
// treated as misses.
func (g *Generator) lookup(ctx context.Context, key string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	e, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.IsNotFoundError(err) {
			logger.LoggerFromContext(ctx).Warnw("Cache read failed", logger.FieldError, err)
		}
		return "", false
	}
	return e.Output, true
}

func (g *Generator) store(ctx context.Context, key, targetName, programName string, f *ast.File, res *translator.Result) {
	if g.cache == nil {
		return
	}
	if programName == "" {
		programName = f.ProgramName()
	}
	deps, err := json.Marshal(res.Dependencies)
	if err != nil {
		logger.LoggerFromContext(ctx).Warnw("Cache encode failed", logger.FieldError, err)
		return
	}
	e := &cache.Entry{
		Key:          key,
		Target:       targetName,
		Program:      programName,
		Output:       res.Output,
		Dependencies: string(deps),
	}
	if err := g.cache.Put(ctx, e); err != nil {
		logger.LoggerFromContext(ctx).Warnw("Cache write failed", logger.FieldError, err)
	}
}

func decodeInput(rel string, data []byte) (*ast.File, error) {
	var (
		f   *ast.File
		err error
	)
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".yaml", ".yml":
		f, err = ast.DecodeYAML(data)
	default:
		f, err = ast.Decode(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode AST %s", rel)
	}
	return f, nil
}

// Discover returns the AST files under dir, relative to dir and sorted.
// Hidden directories are skipped.
func Discover(dir string) ([]string, error) {
	var inputs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isInput(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "input directory %s", dir)
		}
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(inputs)
	return inputs, nil
}

func isInput(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range InputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
