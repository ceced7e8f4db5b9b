package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/metagen/errors"
)

// Decoding errors. The unknown-kind errors are also returned by the
// translator for variants it cannot handle.
var (
	// ErrMalformedNode marks a node that is not a single-key mapping of the
	// expected shape
	ErrMalformedNode = errors.New("malformed AST node")

	// ErrUnknownStatementKind marks a statement tag outside the grammar
	ErrUnknownStatementKind = errors.New("unknown statement kind")

	// ErrUnknownExpressionKind marks an expression tag outside the grammar
	ErrUnknownExpressionKind = errors.New("unknown expression kind")

	// ErrUnknownInitializerKind marks an Init whose initializer is neither
	// an Expr nor an ArgumentList
	ErrUnknownInitializerKind = errors.New("unknown initializer kind")
)

// ReadFile decodes the AST document at path. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read AST %s", path)
	}
	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = DecodeYAML(data)
	default:
		f, err = Decode(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode AST %s", path)
	}
	return f, nil
}

// Decode parses a JSON AST document:
//
//	{"FilePath": "knn.sg", "Program": [{"Statement": ...}, {"Comment": "..."}]}
func Decode(data []byte) (*File, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrMalformedNode), "invalid JSON")
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, malformed("$", "unexpected data after the document at offset %d", dec.InputOffset())
	}
	return DecodeDocument(doc)
}

// DecodeYAML parses the same document shape from YAML. Number scalars keep
// their source text, as with JSON.
func DecodeYAML(data []byte) (*File, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrMalformedNode), "invalid YAML")
	}
	doc, err := yamlValue(&node, "$")
	if err != nil {
		return nil, err
	}
	return DecodeDocument(doc)
}

// yamlValue converts a YAML node into the tree encoding/json would produce
// with UseNumber: ints and floats become json.Number holding the scalar text.
func yamlValue(n *yaml.Node, path string) (interface{}, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0], path)
	case yaml.AliasNode:
		return yamlValue(n.Alias, path)
	case yaml.SequenceNode:
		items := make([]interface{}, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := yamlValue(c, index(path, i))
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, malformed(path, "mapping keys must be scalars (line %d)", k.Line)
			}
			if _, dup := m[k.Value]; dup {
				return nil, malformed(path, "duplicate key %q (line %d)", k.Value, k.Line)
			}
			v, err := yamlValue(n.Content[i+1], field(path, k.Value))
			if err != nil {
				return nil, err
			}
			m[k.Value] = v
		}
		return m, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			return json.Number(n.Value), nil
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, malformed(path, "invalid bool %q (line %d)", n.Value, n.Line)
			}
			return b, nil
		default:
			return n.Value, nil
		}
	default:
		return nil, malformed(path, "unsupported YAML node (line %d)", n.Line)
	}
}

// DecodeDocument converts a generic document tree (as produced by
// encoding/json or yaml.v3) into a File.
func DecodeDocument(doc interface{}) (*File, error) {
	root, ok := asMap(doc)
	if !ok {
		return nil, malformed("$", "document must be a mapping, got %s", describe(doc))
	}

	f := &File{}
	if fp, ok := root["FilePath"]; ok {
		s, ok := fp.(string)
		if !ok {
			return nil, malformed("$.FilePath", "expected string, got %s", describe(fp))
		}
		f.FilePath = s
	}

	body, ok := root["Program"]
	if !ok {
		return nil, malformed("$", "missing Program")
	}
	prog, err := DecodeProgram(body)
	if err != nil {
		return nil, err
	}
	f.Program = prog
	return f, nil
}

// DecodeProgram converts the Program array of a document.
func DecodeProgram(v interface{}) (Program, error) {
	d := &decoder{}
	return d.program(v, "$.Program")
}

type decoder struct{}

func (d *decoder) program(v interface{}, path string) (Program, error) {
	if v == nil {
		return Program{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, malformed(path, "expected list of lines, got %s", describe(v))
	}
	prog := make(Program, 0, len(items))
	for i, item := range items {
		line, err := d.line(item, index(path, i))
		if err != nil {
			return nil, err
		}
		prog = append(prog, line)
	}
	return prog, nil
}

func (d *decoder) line(v interface{}, path string) (Line, error) {
	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	switch key {
	case "Statement":
		stmt, err := d.statement(val, field(path, key))
		if err != nil {
			return nil, err
		}
		return StatementLine{Statement: stmt}, nil
	case "Comment":
		text, ok := val.(string)
		if !ok {
			return nil, malformed(field(path, key), "expected string, got %s", describe(val))
		}
		return CommentLine{Text: text}, nil
	default:
		return nil, malformed(path, "unknown line kind %q (want Statement or Comment)", key)
	}
}

func (d *decoder) statement(v interface{}, path string) (Statement, error) {
	if s, ok := v.(string); ok {
		if s == "\n" {
			return BlankLine{}, nil
		}
		return nil, malformed(path, "unexpected string statement %q", s)
	}

	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	path = field(path, key)

	switch key {
	case "Init":
		return d.init(val, path)
	case "Assign":
		parts, err := tuple(val, path, 2, 2)
		if err != nil {
			return nil, err
		}
		name, err := d.identifier(parts[0], index(path, 0))
		if err != nil {
			return nil, err
		}
		expr, err := d.wrappedExpr(parts[1], index(path, 1))
		if err != nil {
			return nil, err
		}
		return Assign{Name: name, Expr: expr}, nil
	case "Expr":
		expr, err := d.expr(val, path)
		if err != nil {
			return nil, err
		}
		return ExprStmt{Expr: expr}, nil
	case "Print":
		expr, err := d.wrappedExpr(val, path)
		if err != nil {
			return nil, err
		}
		return Print{Expr: expr}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownStatementKind, "%q at %s", key, path)
	}
}

func (d *decoder) init(v interface{}, path string) (Statement, error) {
	parts, err := tuple(v, path, 3, 3)
	if err != nil {
		return nil, err
	}
	typ, err := d.typ(parts[0], index(path, 0))
	if err != nil {
		return nil, err
	}
	name, err := d.identifier(parts[1], index(path, 1))
	if err != nil {
		return nil, err
	}

	initPath := index(path, 2)
	key, val, err := single(parts[2], initPath)
	if err != nil {
		return nil, err
	}
	var initializer Initializer
	switch key {
	case "Expr":
		expr, err := d.expr(val, field(initPath, key))
		if err != nil {
			return nil, err
		}
		initializer = CopyInit{Expr: expr}
	case "ArgumentList":
		args, err := d.args(val, field(initPath, key))
		if err != nil {
			return nil, err
		}
		if args == nil {
			args = ArgumentList{}
		}
		initializer = ConstructInit{Args: args}
	default:
		return nil, errors.Wrapf(ErrUnknownInitializerKind, "%q at %s", key, initPath)
	}

	return Init{Type: typ, Name: name, Initializer: initializer}, nil
}

func (d *decoder) typ(v interface{}, path string) (Type, error) {
	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	name, ok := val.(string)
	if !ok {
		return nil, malformed(field(path, key), "expected type name string, got %s", describe(val))
	}
	switch key {
	case "ObjectType":
		return ObjectType{Name: name}, nil
	case "BasicType":
		return BasicType{Name: name}, nil
	default:
		return nil, malformed(path, "unknown type kind %q (want ObjectType or BasicType)", key)
	}
}

func (d *decoder) identifier(v interface{}, path string) (string, error) {
	key, val, err := single(v, path)
	if err != nil {
		return "", err
	}
	if key != "Identifier" {
		return "", malformed(path, "expected Identifier, got %q", key)
	}
	name, ok := val.(string)
	if !ok {
		return "", malformed(field(path, key), "expected string, got %s", describe(val))
	}
	return name, nil
}

// wrappedExpr decodes {"Expr": expr}.
func (d *decoder) wrappedExpr(v interface{}, path string) (Expr, error) {
	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	if key != "Expr" {
		return nil, malformed(path, "expected Expr, got %q", key)
	}
	return d.expr(val, field(path, key))
}

func (d *decoder) expr(v interface{}, path string) (Expr, error) {
	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	path = field(path, key)

	switch key {
	case "MethodCall":
		parts, err := tuple(val, path, 2, 3)
		if err != nil {
			return nil, err
		}
		object, err := d.identifier(parts[0], index(path, 0))
		if err != nil {
			return nil, err
		}
		method, err := d.identifier(parts[1], index(path, 1))
		if err != nil {
			return nil, err
		}
		call := MethodCall{Object: object, Method: method}
		if len(parts) == 3 {
			if call.Args, err = d.args(parts[2], index(path, 2)); err != nil {
				return nil, err
			}
		}
		return call, nil
	case "BoolLiteral":
		b, err := boolValue(val, path)
		if err != nil {
			return nil, err
		}
		return BoolLiteral{Value: b}, nil
	case "StringLiteral":
		s, ok := scalarText(val)
		if !ok {
			return nil, malformed(path, "expected string, got %s", describe(val))
		}
		return StringLiteral{Value: s}, nil
	case "NumberLiteral":
		s, ok := scalarText(val)
		if !ok {
			return nil, malformed(path, "expected number, got %s", describe(val))
		}
		return NumberLiteral{Text: s}, nil
	case "Identifier":
		s, ok := val.(string)
		if !ok {
			return nil, malformed(path, "expected string, got %s", describe(val))
		}
		return Identifier{Name: s}, nil
	case "Enum":
		parts, err := tuple(val, path, 2, 2)
		if err != nil {
			return nil, err
		}
		enumType, err := d.identifier(parts[0], index(path, 0))
		if err != nil {
			return nil, err
		}
		value, err := d.identifier(parts[1], index(path, 1))
		if err != nil {
			return nil, err
		}
		return EnumRef{EnumType: enumType, Value: value}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownExpressionKind, "%q at %s", key, path)
	}
}

// args decodes an argument list: null, a list, {"Expr": ...} or
// {"ArgumentList": ...}. A null value yields a nil (absent) list.
func (d *decoder) args(v interface{}, path string) (ArgumentList, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		list := make(ArgumentList, 0, len(v))
		for i, item := range v {
			arg, err := d.arg(item, index(path, i))
			if err != nil {
				return nil, err
			}
			list = append(list, arg)
		}
		return list, nil
	default:
		arg, err := d.arg(v, path)
		if err != nil {
			return nil, err
		}
		return ArgumentList{arg}, nil
	}
}

func (d *decoder) arg(v interface{}, path string) (Arg, error) {
	if items, ok := v.([]interface{}); ok {
		return d.args(items, path)
	}
	key, val, err := single(v, path)
	if err != nil {
		return nil, err
	}
	switch key {
	case "Expr":
		return d.expr(val, field(path, key))
	case "ArgumentList":
		nested, err := d.args(val, field(path, key))
		if err != nil {
			return nil, err
		}
		if nested == nil {
			nested = ArgumentList{}
		}
		return nested, nil
	default:
		return nil, malformed(path, "unknown argument kind %q (want Expr or ArgumentList)", key)
	}
}

// single unpacks a mapping with exactly one key.
func single(v interface{}, path string) (string, interface{}, error) {
	m, ok := asMap(v)
	if !ok {
		return "", nil, malformed(path, "expected single-key mapping, got %s", describe(v))
	}
	if len(m) != 1 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", nil, malformed(path, "expected exactly one key, got %d [%s]", len(m), strings.Join(keys, ", "))
	}
	for k, val := range m {
		return k, val, nil
	}
	return "", nil, nil
}

// tuple unpacks a list with between min and max elements.
func tuple(v interface{}, path string, min, max int) ([]interface{}, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, malformed(path, "expected list, got %s", describe(v))
	}
	if len(items) < min || len(items) > max {
		if min == max {
			return nil, malformed(path, "expected %d elements, got %d", min, len(items))
		}
		return nil, malformed(path, "expected %d to %d elements, got %d", min, max, len(items))
	}
	return items, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func boolValue(v interface{}, path string) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch b {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		}
	}
	return false, malformed(path, "expected True or False, got %s", describe(v))
}

// scalarText returns the source text of a string or number scalar.
func scalarText(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	default:
		return "", false
	}
}

func describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []interface{}:
		return "list"
	case map[string]interface{}, map[interface{}]interface{}:
		return "mapping"
	default:
		return "number"
	}
}

func malformed(path, format string, args ...interface{}) error {
	return errors.Wrap(ErrMalformedNode, path+": "+fmt.Sprintf(format, args...))
}

func field(path, key string) string {
	return path + "." + key
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
