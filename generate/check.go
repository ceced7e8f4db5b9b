package generate

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/metagen/errors"
)

// CheckResult holds the result of comparing a fresh generation with an
// existing output tree.
type CheckResult struct {
	UpToDate bool `json:"up_to_date"`

	// Differences maps a target to the files whose content differs or that
	// are missing from the existing tree
	Differences map[string][]string `json:"differences,omitempty"`

	// Stale maps a target to existing files that would no longer be generated
	Stale map[string][]string `json:"stale,omitempty"`
}

// Check generates job into a temporary directory and compares the result
// with existing, laid out like Job.OutputDir. job.OutputDir is ignored.
// Translation failures are returned as errors, not as differences.
func (g *Generator) Check(ctx context.Context, job Job, existing string) (*CheckResult, error) {
	tmp, err := os.MkdirTemp("", "metagen-check-*")
	if err != nil {
		return nil, errors.Wrap(err, "create check directory")
	}
	defer os.RemoveAll(tmp)

	job.OutputDir = tmp
	if _, err := g.Run(ctx, job); err != nil {
		return nil, err
	}

	result := &CheckResult{
		Differences: make(map[string][]string),
		Stale:       make(map[string][]string),
	}
	for _, name := range job.Targets {
		fresh := filepath.Join(tmp, name)
		old := filepath.Join(existing, name)

		if diffs := compareDirectory(fresh, old); len(diffs) > 0 {
			result.Differences[name] = diffs
		}
		stale, err := extraFiles(fresh, old)
		if err != nil {
			return nil, err
		}
		if len(stale) > 0 {
			result.Stale[name] = stale
		}
	}
	result.UpToDate = len(result.Differences) == 0 && len(result.Stale) == 0
	return result, nil
}

// compareDirectory returns the files under freshDir, relative to it, whose
// counterpart in existingDir differs or cannot be read.
func compareDirectory(freshDir, existingDir string) []string {
	var diffs []string
	filepath.WalkDir(freshDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(freshDir, path)
		if err != nil {
			return err
		}
		different, err := filesAreDifferent(path, filepath.Join(existingDir, rel))
		if err != nil {
			if os.IsNotExist(errors.UnwrapAll(err)) {
				diffs = append(diffs, rel+" (missing)")
			} else {
				diffs = append(diffs, rel+" (error: "+err.Error()+")")
			}
		} else if different {
			diffs = append(diffs, rel)
		}
		return nil
	})
	sort.Strings(diffs)
	return diffs
}

// extraFiles lists files under existingDir with no counterpart in freshDir.
func extraFiles(freshDir, existingDir string) ([]string, error) {
	var extra []string
	err := filepath.WalkDir(existingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == existingDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(existingDir, path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(freshDir, rel)); os.IsNotExist(err) {
			extra = append(extra, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", existingDir)
	}
	sort.Strings(extra)
	return extra, nil
}

func filesAreDifferent(file1, file2 string) (bool, error) {
	content1, err := os.ReadFile(file1)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", file1)
	}
	content2, err := os.ReadFile(file2)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", file2)
	}
	return !bytes.Equal(content1, content2), nil
}
