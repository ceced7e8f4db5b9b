package translator

import (
	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/target"
	"github.com/teranos/metagen/tmpl"
)

const defaultSeparator = ", "

var (
	defaultClassElement = tmpl.MustParse("$element")
	defaultEnumElement  = tmpl.MustParse("$value")
)

type templates struct {
	program, statement, assign, print, comment *tmpl.Template
	initCopy, initConstruct                    *tmpl.Template

	methodCall, stringLiteral, numberLiteral, identifier, enum *tmpl.Template
	boolLiteral                                                map[bool]string

	types       map[string]*tmpl.Template
	defaultType *tmpl.Template

	deps *dependencyTemplates
}

type dependencyTemplates struct {
	allClasses, constructedClasses, enums, all *tmpl.Template
	classElement, enumElement                  *tmpl.Template
	separator                                  string
}

func compile(def *target.Definition) (*templates, error) {
	c := &compiler{}
	tpl := &templates{
		program:       c.parse("Program", def.Program),
		statement:     c.parse("Statement", def.Statement),
		assign:        c.parse("Assign", def.Assign),
		print:         c.parse("Print", def.Print),
		comment:       c.parse("Comment", def.Comment),
		initCopy:      c.parse("Init.Copy", def.Init.Copy),
		initConstruct: c.parse("Init.Construct", def.Init.Construct),
		methodCall:    c.parse("Expr.MethodCall", def.Expr.MethodCall),
		stringLiteral: c.parse("Expr.StringLiteral", def.Expr.StringLiteral),
		numberLiteral: c.parse("Expr.NumberLiteral", def.Expr.NumberLiteral),
		identifier:    c.parse("Expr.Identifier", def.Expr.Identifier),
		enum:          c.parse("Expr.Enum", def.Expr.Enum),
		boolLiteral:   make(map[bool]string, 2),
		types:         make(map[string]*tmpl.Template, len(def.Type)),
	}

	for _, b := range []struct {
		key   string
		value bool
	}{{"True", true}, {"False", false}} {
		lit, ok := def.Expr.BoolLiteral[b.key]
		if !ok {
			c.fail(errors.Newf("Expr.BoolLiteral.%s is missing", b.key))
			continue
		}
		tpl.boolLiteral[b.value] = lit
	}

	for name, src := range def.Type {
		tpl.types[name] = c.parse("Type."+name, src)
	}
	tpl.defaultType = tpl.types[target.DefaultTypeKey]
	if tpl.defaultType == nil {
		c.fail(errors.Newf("Type.%s is missing", target.DefaultTypeKey))
	}

	if d := def.Dependencies; d != nil {
		deps := &dependencyTemplates{
			allClasses:         c.optional("Dependencies.AllClassDependencies", d.AllClassDependencies),
			constructedClasses: c.optional("Dependencies.ConstructedClassDependencies", d.ConstructedClassDependencies),
			enums:              c.optional("Dependencies.EnumDependencies", d.EnumDependencies),
			all:                c.optional("Dependencies.AllDependencies", d.AllDependencies),
			classElement:       c.optional("Dependencies.DependencyListElementClass", d.DependencyListElementClass),
			enumElement:        c.optional("Dependencies.DependencyListElementEnum", d.DependencyListElementEnum),
			separator:          defaultSeparator,
		}
		if deps.classElement == nil {
			deps.classElement = defaultClassElement
		}
		if deps.enumElement == nil {
			deps.enumElement = defaultEnumElement
		}
		if d.DependencyListSeparator != nil {
			deps.separator = *d.DependencyListSeparator
		}
		tpl.deps = deps
	}

	if c.err != nil {
		return nil, errors.Mark(c.err, target.ErrInvalid)
	}
	return tpl, nil
}

// compiler keeps the first error so compile reads as a flat list of parses.
type compiler struct {
	err error
}

func (c *compiler) parse(path, src string) *tmpl.Template {
	t, err := tmpl.Parse(src)
	if err != nil {
		c.fail(errors.Wrapf(err, "template %s", path))
		return nil
	}
	return t
}

func (c *compiler) optional(path string, src *string) *tmpl.Template {
	if src == nil {
		return nil
	}
	return c.parse(path, *src)
}

func (c *compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}
