package generate

import (
	"context"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/metagen/errors"
)

// Formatter runs an external command on a generated file. The file path is
// appended as the last argument.
type Formatter struct {
	Target string
	argv   []string
}

// ParseFormatter splits a shell-style command line such as
// `clang-format -style="{BasedOnStyle: llvm}" -i`.
func ParseFormatter(target, command string) (*Formatter, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "formatter for %s", target)
	}
	if len(argv) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "formatter for %s is empty", target)
	}
	return &Formatter{Target: target, argv: argv}, nil
}

// ParseFormatters parses a target -> command map.
func ParseFormatters(commands map[string]string) (map[string]*Formatter, error) {
	out := make(map[string]*Formatter, len(commands))
	for target, command := range commands {
		f, err := ParseFormatter(target, command)
		if err != nil {
			return nil, err
		}
		out[target] = f
	}
	return out, nil
}

// Command returns the command line as it would be run on path.
func (f *Formatter) Command(path string) string {
	return shellquote.Join(append(append([]string{}, f.argv...), path)...)
}

// Format runs the formatter on path. Command output is attached to the
// error as detail.
func (f *Formatter) Format(ctx context.Context, path string) error {
	args := append(append([]string{}, f.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, f.argv[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		err = errors.Wrapf(err, "format %s with %s", path, f.argv[0])
		if msg := strings.TrimSpace(string(out)); msg != "" {
			err = errors.WithDetail(err, msg)
		}
		return err
	}
	return nil
}
