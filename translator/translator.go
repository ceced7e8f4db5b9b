// Package translator renders an example program AST as source text for one
// target language, driven entirely by the target's template bundle.
//
// A Translator holds only the compiled, immutable templates. All state that
// accumulates while translating (dependency sets, variables tracked for the
// storage epilogue) lives in a run created per Translate call, so one
// Translator may serve concurrent callers.
package translator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/metagen/ast"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/logger"
	"github.com/teranos/metagen/tags"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
)

// ErrDependencyResolution is returned when no include-path tag matches any
// variant of a class name.
var ErrDependencyResolution = errors.New("could not obtain include path")

// Options configure a Translator.
type Options struct {
	// Mode controls missing placeholders; the zero value is tmpl.Strict
	Mode tmpl.Mode

	// Logger defaults to the "translator" component logger
	Logger *zap.SugaredLogger
}

// Params are the per-program inputs of a translation.
type Params struct {
	// ProgramName binds $programName and names the epilogue's data file
	ProgramName string

	// Tags resolve $include in class dependency elements
	Tags tags.Map

	// StoreVars appends the storage epilogue into $testing
	StoreVars bool
}

// Result is a translated program.
type Result struct {
	Output       string       `json:"output"`
	Dependencies Dependencies `json:"dependencies"`
	// StoredVars lists the variables serialized by the epilogue, in
	// declaration order
	StoredVars []string `json:"stored_vars,omitempty"`
}

// Dependencies are the dependency sets collected during one translation,
// sorted.
type Dependencies struct {
	AllClasses         []string  `json:"all_classes"`
	ConstructedClasses []string  `json:"constructed_classes"`
	Enums              []EnumRef `json:"enums"`
}

// EnumRef is an (enum type, value) pair referenced by the program.
type EnumRef struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Translator translates programs for one target.
type Translator struct {
	def  *target.Definition
	mode tmpl.Mode
	log  *zap.SugaredLogger
	tpl  *templates
}

// New compiles the templates of def. The definition must not be modified
// afterwards.
func New(def *target.Definition, opts Options) (*Translator, error) {
	if def == nil {
		return nil, errors.New("nil target definition")
	}
	tpl, err := compile(def)
	if err != nil {
		return nil, errors.Wrapf(err, "compile target %q", def.Name)
	}

	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("translator")
	}

	return &Translator{
		def:  def,
		mode: opts.Mode,
		log:  log,
		tpl:  tpl,
	}, nil
}

// Target returns the definition the translator was built from.
func (t *Translator) Target() *target.Definition {
	return t.def
}

// TranslateFile translates a decoded AST document, deriving the program name
// from its FilePath.
func (t *Translator) TranslateFile(ctx context.Context, f *ast.File, p Params) (*Result, error) {
	if p.ProgramName == "" {
		p.ProgramName = f.ProgramName()
	}
	return t.Translate(ctx, f.Program, p)
}

// Translate renders prog into the target's Program template. Translation is
// all-or-nothing: on error no partial output is returned.
func (t *Translator) Translate(ctx context.Context, prog ast.Program, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	r := newRun(t, p)

	var body strings.Builder
	for i, line := range prog {
		text, err := r.line(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		body.WriteString(text)
	}

	var testing string
	if p.StoreVars {
		var err error
		if testing, err = r.epilogue(); err != nil {
			return nil, errors.Wrap(err, "storage epilogue")
		}
	}

	deps, err := r.dependencyBlock()
	if err != nil {
		return nil, errors.Wrap(err, "dependencies")
	}

	out, err := r.render(t.tpl.program, "Program", tmpl.Bindings{
		"program":      body.String(),
		"dependencies": deps,
		"testing":      testing,
		"programName":  p.ProgramName,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:       out,
		Dependencies: r.sets(),
		StoredVars:   r.stored,
	}

	t.log.With(logger.FieldsFromContext(ctx)...).Debugw("Translated program",
		logger.FieldTarget, t.def.Name,
		logger.FieldProgram, p.ProgramName,
		logger.FieldLines, len(prog),
		logger.FieldClasses, len(res.Dependencies.AllClasses),
		logger.FieldConstructed, len(res.Dependencies.ConstructedClasses),
		logger.FieldEnums, len(res.Dependencies.Enums),
		logger.FieldStoredVars, len(res.StoredVars),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// TranslateProgram is a one-shot translation with strict templates.
func TranslateProgram(def *target.Definition, prog ast.Program, p Params) (*Result, error) {
	t, err := New(def, Options{})
	if err != nil {
		return nil, err
	}
	return t.Translate(context.Background(), prog, p)
}
