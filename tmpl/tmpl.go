// Package tmpl renders the named-placeholder templates used by target
// definitions.
//
// Syntax:
//
//	$name      placeholder (name: [A-Za-z_][A-Za-z0-9_]*)
//	${name}    placeholder, braced form for names followed by identifier text
//	$$         a literal dollar sign
//
// A "$" that starts none of the forms above is kept as literal text, so
// target code such as "x$ " survives unchanged.
package tmpl

import (
	"sort"
	"strings"

	"github.com/teranos/metagen/errors"
)

// ErrMissingPlaceholder is returned in Strict mode when a template uses a
// placeholder that has no binding.
var ErrMissingPlaceholder = errors.New("missing placeholder binding")

// ErrSyntax is returned by Parse for malformed templates.
var ErrSyntax = errors.New("template syntax error")

// Mode selects how unresolved placeholders are handled.
type Mode int

const (
	// Strict fails on the first placeholder without a binding.
	Strict Mode = iota
	// Permissive leaves unresolved placeholders in the output verbatim.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

// Bindings maps placeholder names to rendered substrings.
type Bindings map[string]string

type segment struct {
	text string // literal text, or the raw source of a placeholder
	name string // placeholder name; empty for literal segments
}

// Template is a parsed placeholder template. It is immutable and safe for
// concurrent use.
type Template struct {
	src      string
	segments []segment
	names    []string
}

// Parse compiles src into a Template.
func Parse(src string) (*Template, error) {
	t := &Template{src: src}
	seen := make(map[string]bool)

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}
	addName := func(name, raw string) {
		flush()
		t.segments = append(t.segments, segment{text: raw, name: name})
		if !seen[name] {
			seen[name] = true
			t.names = append(t.names, name)
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		if c != '$' || i+1 >= len(src) {
			lit.WriteByte(c)
			i++
			continue
		}

		next := src[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(src[i+2:], '}')
			if end < 0 {
				return nil, errors.Wrapf(ErrSyntax, "unterminated \"${\" at offset %d in %q", i, src)
			}
			name := src[i+2 : i+2+end]
			if !isIdentifier(name) {
				return nil, errors.Wrapf(ErrSyntax, "invalid placeholder name %q at offset %d in %q", name, i, src)
			}
			addName(name, src[i:i+3+end])
			i += 3 + end
		case isIdentStart(next):
			j := i + 2
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			addName(src[i+1:j], src[i:j])
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()

	return t, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// templates known to be valid.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the template text as given to Parse.
func (t *Template) Source() string {
	return t.src
}

// Names returns the distinct placeholder names in order of first use.
func (t *Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the template uses the named placeholder.
func (t *Template) Has(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// Render substitutes bindings into the template.
func (t *Template) Render(mode Mode, b Bindings) (string, error) {
	var sb strings.Builder
	sb.Grow(len(t.src))

	for _, seg := range t.segments {
		if seg.name == "" {
			sb.WriteString(seg.text)
			continue
		}
		val, ok := b[seg.name]
		if !ok {
			if mode == Strict {
				return "", errors.Wrapf(ErrMissingPlaceholder, "$%s in %q (bound: %s)",
					seg.name, t.src, strings.Join(boundNames(b), ", "))
			}
			sb.WriteString(seg.text)
			continue
		}
		sb.WriteString(val)
	}

	return sb.String(), nil
}

// Render parses src and renders it in one step.
func Render(src string, mode Mode, b Bindings) (string, error) {
	t, err := Parse(src)
	if err != nil {
		return "", err
	}
	return t.Render(mode, b)
}

func boundNames(b Bindings) []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
