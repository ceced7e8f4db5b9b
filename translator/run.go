package translator

import (
	"sort"
	"strings"

	"github.com/teranos/metagen/ast"
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/tmpl"
)

// trackedTypes are the object types whose variables the storage epilogue
// serializes.
var trackedTypes = map[string]bool{
	"Real":       true,
	"RealVector": true,
	"RealMatrix": true,
}

// run is the state of one Translate call.
type run struct {
	t      *Translator
	params Params

	// dependency sets hold raw AST names
	allClasses  map[string]struct{}
	constructed map[string]struct{}
	enums       map[EnumRef]struct{}

	tracked []string
	stored  []string
}

func newRun(t *Translator, p Params) *run {
	return &run{
		t:           t,
		params:      p,
		allClasses:  make(map[string]struct{}),
		constructed: make(map[string]struct{}),
		enums:       make(map[EnumRef]struct{}),
	}
}

func (r *run) render(t *tmpl.Template, path string, b tmpl.Bindings) (string, error) {
	out, err := t.Render(r.t.mode, b)
	if err != nil {
		return "", errors.Wrapf(err, "render %s", path)
	}
	return out, nil
}

func (r *run) line(l ast.Line) (string, error) {
	switch l := l.(type) {
	case ast.StatementLine:
		return r.statement(l.Statement)
	case ast.CommentLine:
		return r.render(r.t.tpl.comment, "Comment", tmpl.Bindings{"comment": l.Text})
	default:
		return "", errors.Wrapf(ast.ErrMalformedNode, "unknown line %T", l)
	}
}

// statement renders s wrapped in the Statement template. Blank lines pass
// through unwrapped.
func (r *run) statement(s ast.Statement) (string, error) {
	var inner string
	var err error

	switch s := s.(type) {
	case ast.BlankLine:
		return "\n", nil
	case ast.Init:
		inner, err = r.init(s)
	case ast.Assign:
		var expr string
		if expr, err = r.expr(s.Expr); err == nil {
			inner, err = r.render(r.t.tpl.assign, "Assign", tmpl.Bindings{"name": s.Name, "expr": expr})
		}
	case ast.ExprStmt:
		inner, err = r.expr(s.Expr)
	case ast.Print:
		var expr string
		if expr, err = r.expr(s.Expr); err == nil {
			inner, err = r.render(r.t.tpl.print, "Print", tmpl.Bindings{"expr": expr})
		}
	default:
		return "", errors.Wrapf(ast.ErrUnknownStatementKind, "%s", kindOf(s))
	}
	if err != nil {
		return "", err
	}

	return r.render(r.t.tpl.statement, "Statement", tmpl.Bindings{"statement": inner})
}

func (r *run) init(s ast.Init) (string, error) {
	typ, err := r.typ(s.Type)
	if err != nil {
		return "", errors.Wrapf(err, "declaration of %s", s.Name)
	}

	if r.params.StoreVars {
		if ot, ok := s.Type.(ast.ObjectType); ok && trackedTypes[ot.Name] {
			r.tracked = append(r.tracked, s.Name)
		}
	}

	switch in := s.Initializer.(type) {
	case ast.CopyInit:
		expr, err := r.expr(in.Expr)
		if err != nil {
			return "", err
		}
		return r.render(r.t.tpl.initCopy, "Init.Copy", tmpl.Bindings{
			"name": s.Name,
			"type": typ,
			"expr": expr,
		})
	case ast.ConstructInit:
		r.constructed[s.Type.TypeName()] = struct{}{}
		args, err := r.args(in.Args)
		if err != nil {
			return "", err
		}
		return r.render(r.t.tpl.initConstruct, "Init.Construct", tmpl.Bindings{
			"name":      s.Name,
			"type":      typ,
			"arguments": args,
		})
	default:
		return "", errors.Wrapf(ast.ErrUnknownInitializerKind, "%T in declaration of %s", in, s.Name)
	}
}

// typ renders a type and records object types as class dependencies.
func (r *run) typ(t ast.Type) (string, error) {
	switch t := t.(type) {
	case ast.ObjectType:
		r.allClasses[t.Name] = struct{}{}
		return r.typeName(t.Name)
	case ast.BasicType:
		return r.typeName(t.Name)
	default:
		return "", errors.Wrapf(ast.ErrMalformedNode, "unknown type %T", t)
	}
}

// typeName renders a type name without recording it.
func (r *run) typeName(name string) (string, error) {
	tpl, ok := r.t.tpl.types[name]
	if !ok {
		tpl = r.t.tpl.defaultType
	}
	return r.render(tpl, "Type."+name, tmpl.Bindings{"type": name})
}

func (r *run) expr(e ast.Expr) (string, error) {
	tpl := r.t.tpl
	switch e := e.(type) {
	case ast.MethodCall:
		args, err := r.args(e.Args)
		if err != nil {
			return "", err
		}
		return r.render(tpl.methodCall, "Expr.MethodCall", tmpl.Bindings{
			"object":    e.Object,
			"method":    e.Method,
			"arguments": args,
		})
	case ast.BoolLiteral:
		return tpl.boolLiteral[e.Value], nil
	case ast.StringLiteral:
		return r.render(tpl.stringLiteral, "Expr.StringLiteral", tmpl.Bindings{"literal": e.Value})
	case ast.NumberLiteral:
		return r.render(tpl.numberLiteral, "Expr.NumberLiteral", tmpl.Bindings{"number": e.Text})
	case ast.Identifier:
		return r.render(tpl.identifier, "Expr.Identifier", tmpl.Bindings{"identifier": e.Name})
	case ast.EnumRef:
		r.enums[EnumRef{Type: e.EnumType, Value: e.Value}] = struct{}{}
		return r.render(tpl.enum, "Expr.Enum", tmpl.Bindings{"type": e.EnumType, "value": e.Value})
	default:
		return "", errors.Wrapf(ast.ErrUnknownExpressionKind, "%T", e)
	}
}

// args renders a flattened argument list joined by ", ". Absent and empty
// lists render as "".
func (r *run) args(list ast.ArgumentList) (string, error) {
	exprs, err := list.Exprs()
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		s, err := r.expr(e)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// sets returns the dependency sets in deterministic order.
func (r *run) sets() Dependencies {
	return Dependencies{
		AllClasses:         sortedKeys(r.allClasses),
		ConstructedClasses: sortedKeys(r.constructed),
		Enums:              sortedEnums(r.enums),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedEnums(set map[EnumRef]struct{}) []EnumRef {
	enums := make([]EnumRef, 0, len(set))
	for e := range set {
		enums = append(enums, e)
	}
	sort.Slice(enums, func(i, j int) bool {
		if enums[i].Type != enums[j].Type {
			return enums[i].Type < enums[j].Type
		}
		return enums[i].Value < enums[j].Value
	})
	return enums
}

func kindOf(s ast.Statement) string {
	if s == nil {
		return "<nil>"
	}
	return s.Kind()
}
