// Package tags loads include-path tags: a mapping from a class name variant
// to the header a target language must include to use that class.
package tags

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/metagen/errors"
)

// ErrInvalid marks a tags file that cannot be parsed.
var ErrInvalid = errors.New("invalid tags file")

// Map maps a class name variant ("CDenseFeatures") to its include path
// ("features/DenseFeatures.h").
type Map map[string]string

// Lookup returns the include path of the first variant present in m.
func (m Map) Lookup(variants ...string) (string, bool) {
	for _, v := range variants {
		if p, ok := m[v]; ok {
			return p, true
		}
	}
	return "", false
}

// Names returns the tagged names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads a tags file. JSON, YAML and TOML files hold a flat name to path
// mapping; any other file is parsed as ctags output. For ctags, root trims
// each location to the part after the last "<root>/" segment, so
// "src/shogun/features/DenseFeatures.h" becomes "features/DenseFeatures.h"
// with root "shogun".
func Load(path, root string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tags %s", path)
	}

	var m Map
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.NewDecoder(bytes.NewReader(data)).Decode(&m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		_, err = toml.Decode(string(data), &m)
	default:
		m, err = ParseCtags(bytes.NewReader(data), root)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, ErrInvalid), "parse tags %s", path)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// ParseCtags reads ctags lines of the form "name<TAB>file<TAB>address...".
// Pseudo-tags ("!_TAG_") and blank lines are skipped. When a name appears
// more than once the first entry wins.
func ParseCtags(r io.Reader, root string) (Map, error) {
	m := Map{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "!_TAG_") {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, errors.Newf("line %d: expected name<TAB>file", lineNo)
		}
		name := fields[0]
		if _, seen := m[name]; seen {
			continue
		}
		m[name] = trimRoot(fields[1], root)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan ctags")
	}
	return m, nil
}

func trimRoot(location, root string) string {
	location = filepath.ToSlash(location)
	if root == "" {
		return location
	}
	marker := strings.Trim(root, "/") + "/"
	if i := strings.LastIndex(location, marker); i >= 0 {
		return location[i+len(marker):]
	}
	return location
}
