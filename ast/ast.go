// Package ast defines the language-agnostic example-program tree consumed by
// the translator.
//
// Every variant family (Line, Statement, Initializer, Type, Expr) is a sealed
// interface: the marker methods are unexported, so a type switch over the
// variants declared here is exhaustive.
package ast

import "strings"

// File is one parsed example program.
type File struct {
	// FilePath is the path of the source the AST was produced from,
	// e.g. "classifier/knn.sg"
	FilePath string
	Program  Program
}

// ProgramName derives the program name from FilePath: the base name up to
// the first dot ("classifier/knn.sg" -> "knn").
func (f *File) ProgramName() string {
	name := f.FilePath
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// Program is an ordered sequence of lines. Order is preserved verbatim in
// the output, blank lines and comments included.
type Program []Line

// Line is a StatementLine or a CommentLine.
type Line interface {
	isLine()
}

// StatementLine wraps a statement.
type StatementLine struct {
	Statement Statement
}

// CommentLine is a source comment; Text excludes the comment marker.
type CommentLine struct {
	Text string
}

func (StatementLine) isLine() {}
func (CommentLine) isLine()   {}

// Statement is one of Init, Assign, ExprStmt, Print, BlankLine.
type Statement interface {
	isStatement()
	// Kind returns the variant name as it appears in AST documents.
	Kind() string
}

// Init declares a variable: `Type Name = Initializer`.
type Init struct {
	Type        Type
	Name        string
	Initializer Initializer
}

// Assign rebinds an existing variable.
type Assign struct {
	Name string
	Expr Expr
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	Expr Expr
}

// Print writes the value of an expression.
type Print struct {
	Expr Expr
}

// BlankLine is a structural newline, passed through unchanged.
type BlankLine struct{}

func (Init) isStatement()      {}
func (Assign) isStatement()    {}
func (ExprStmt) isStatement()  {}
func (Print) isStatement()     {}
func (BlankLine) isStatement() {}

func (Init) Kind() string      { return "Init" }
func (Assign) Kind() string    { return "Assign" }
func (ExprStmt) Kind() string  { return "Expr" }
func (Print) Kind() string     { return "Print" }
func (BlankLine) Kind() string { return "BlankLine" }

// Initializer is CopyInit or ConstructInit.
type Initializer interface {
	isInitializer()
}

// CopyInit initializes from an existing expression.
type CopyInit struct {
	Expr Expr
}

// ConstructInit initializes by calling the type's constructor with Args.
type ConstructInit struct {
	Args ArgumentList
}

func (CopyInit) isInitializer()      {}
func (ConstructInit) isInitializer() {}

// Type is ObjectType or BasicType.
type Type interface {
	isType()
	// TypeName returns the raw type name from the AST.
	TypeName() string
}

// ObjectType names a library class. Only object types are tracked as
// class dependencies.
type ObjectType struct {
	Name string
}

// BasicType names a primitive such as "int" or "bool".
type BasicType struct {
	Name string
}

func (ObjectType) isType() {}
func (BasicType) isType()  {}

func (t ObjectType) TypeName() string { return t.Name }
func (t BasicType) TypeName() string  { return t.Name }

// Expr is one of MethodCall, BoolLiteral, StringLiteral, NumberLiteral,
// Identifier, EnumRef. Every Expr is also an Arg.
type Expr interface {
	Arg
	isExpr()
}

// MethodCall is `Object.Method(Args)`. Args may be nil.
type MethodCall struct {
	Object string
	Method string
	Args   ArgumentList
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Value bool
}

// StringLiteral holds the unquoted string payload.
type StringLiteral struct {
	Value string
}

// NumberLiteral keeps the number's source text so formatting survives
// translation ("1e-3" stays "1e-3").
type NumberLiteral struct {
	Text string
}

// Identifier references a variable by name.
type Identifier struct {
	Name string
}

// EnumRef is a qualified enum value, e.g. EnumType.VALUE.
type EnumRef struct {
	EnumType string
	Value    string
}

func (MethodCall) isExpr()    {}
func (BoolLiteral) isExpr()   {}
func (StringLiteral) isExpr() {}
func (NumberLiteral) isExpr() {}
func (Identifier) isExpr()    {}
func (EnumRef) isExpr()       {}

func (MethodCall) isArg()    {}
func (BoolLiteral) isArg()   {}
func (StringLiteral) isArg() {}
func (NumberLiteral) isArg() {}
func (Identifier) isArg()    {}
func (EnumRef) isArg()       {}

// Arg is an element of an ArgumentList: an Expr or a nested ArgumentList.
type Arg interface {
	isArg()
}

// ArgumentList is a possibly nested sequence of expressions. A nil list
// means the arguments were absent.
type ArgumentList []Arg

func (ArgumentList) isArg() {}

// Args builds a flat argument list.
func Args(exprs ...Expr) ArgumentList {
	if len(exprs) == 0 {
		return ArgumentList{}
	}
	list := make(ArgumentList, len(exprs))
	for i, e := range exprs {
		list[i] = e
	}
	return list
}

// Flatten returns the expressions of l in order, unwrapping nested lists at
// any depth. Nil elements are skipped; Exprs rejects them.
func (l ArgumentList) Flatten() []Expr {
	var out []Expr
	for _, a := range l {
		switch a := a.(type) {
		case ArgumentList:
			out = append(out, a.Flatten()...)
		case Expr:
			out = append(out, a)
		}
	}
	return out
}

// Exprs is Flatten for translation: an element that is neither an Expr nor
// a nested list (including nil) is an ErrMalformedNode.
func (l ArgumentList) Exprs() ([]Expr, error) {
	return l.appendExprs(nil, "arguments")
}

func (l ArgumentList) appendExprs(out []Expr, path string) ([]Expr, error) {
	for i, a := range l {
		switch a := a.(type) {
		case ArgumentList:
			var err error
			if out, err = a.appendExprs(out, index(path, i)); err != nil {
				return nil, err
			}
		case Expr:
			out = append(out, a)
		default:
			return nil, malformed(index(path, i), "expected Expr or ArgumentList, got %T", a)
		}
	}
	return out, nil
}
