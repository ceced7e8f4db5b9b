package translator

import (
	"regexp"
	"strings"

	"github.com/teranos/metagen/errors"
	"github.com/teranos/metagen/tmpl"
)

// templateParams matches a template parameter suffix such as "<float64_t>".
var templateParams = regexp.MustCompile(`<[0-9a-zA-Z_]*>`)

// dependencyBlock renders the import/include block. A category contributes
// only when its set is non-empty and the target defines its template; when
// no category contributes the block is empty.
func (r *run) dependencyBlock() (string, error) {
	d := r.t.tpl.deps
	if d == nil {
		return "", nil
	}

	var allClasses, constructed, enums string
	exist := false

	if len(r.allClasses) > 0 && d.allClasses != nil {
		exist = true
		list, err := r.classList(sortedKeys(r.allClasses), false)
		if err != nil {
			return "", err
		}
		if allClasses, err = r.render(d.allClasses, "Dependencies.AllClassDependencies", tmpl.Bindings{"classlist": list}); err != nil {
			return "", err
		}
	}

	if len(r.constructed) > 0 && d.constructedClasses != nil {
		exist = true
		list, err := r.classList(sortedKeys(r.constructed), true)
		if err != nil {
			return "", err
		}
		if constructed, err = r.render(d.constructedClasses, "Dependencies.ConstructedClassDependencies", tmpl.Bindings{"classlist": list}); err != nil {
			return "", err
		}
	}

	if len(r.enums) > 0 && d.enums != nil {
		exist = true
		list, err := r.enumList()
		if err != nil {
			return "", err
		}
		if enums, err = r.render(d.enums, "Dependencies.EnumDependencies", tmpl.Bindings{"enums": list}); err != nil {
			return "", err
		}
	}

	if !exist || d.all == nil {
		return "", nil
	}
	return r.render(d.all, "Dependencies.AllDependencies", tmpl.Bindings{
		"allClassDependencies":         allClasses,
		"constructedClassDependencies": constructed,
		"enumDependencies":             enums,
	})
}

// classList renders each class through the element template. Constructed
// classes bind $element to the rendered type name, all-classes to the raw
// name. $include is resolved only when the element template uses it.
func (r *run) classList(names []string, rendered bool) (string, error) {
	d := r.t.tpl.deps
	wantInclude := d.classElement.Has("include")

	parts := make([]string, 0, len(names))
	for _, name := range names {
		element := name
		if rendered {
			var err error
			if element, err = r.typeName(name); err != nil {
				return "", err
			}
		}

		b := tmpl.Bindings{"element": element}
		if wantInclude {
			include, err := r.includePath(name)
			if err != nil {
				return "", err
			}
			b["include"] = include
		}

		s, err := r.render(d.classElement, "Dependencies.DependencyListElementClass", b)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, d.separator), nil
}

func (r *run) enumList() (string, error) {
	d := r.t.tpl.deps
	enums := sortedEnums(r.enums)
	parts := make([]string, 0, len(enums))
	for _, e := range enums {
		s, err := r.render(d.enumElement, "Dependencies.DependencyListElementEnum", tmpl.Bindings{
			"type":  e.Type,
			"value": e.Value,
		})
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, d.separator), nil
}

// includePath resolves a class's include path from the tags. Variants are
// probed in order: the rendered type name, with a "C" prefix, with template
// parameters stripped, and "C" plus stripped.
func (r *run) includePath(class string) (string, error) {
	rendered, err := r.typeName(class)
	if err != nil {
		return "", err
	}
	stripped := templateParams.ReplaceAllString(rendered, "")
	variants := []string{rendered, "C" + rendered, stripped, "C" + stripped}

	if p, ok := r.params.Tags.Lookup(variants...); ok {
		return p, nil
	}

	err = errors.Wrapf(ErrDependencyResolution, "for %s", strings.Join(variants, " or "))
	return "", errors.WithHint(err, "check that the tags file covers this class (--tags)")
}
