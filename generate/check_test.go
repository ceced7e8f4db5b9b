package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/metagen/errors"
	metagentest "github.com/teranos/metagen/internal/testing"
)

func TestCheck(t *testing.T) {
	in := metagentest.WriteTree(t, map[string]string{
		"knn.json":   knnJSON,
		"print.yaml": printYAML,
	})
	existing := t.TempDir()
	job := Job{InputDir: in, OutputDir: existing, Targets: []string{"python", "octave"}}
	g := newGenerator(t)
	ctx := context.Background()

	_, err := g.Run(ctx, job)
	require.NoError(t, err)

	result, err := g.Check(ctx, job, existing)
	require.NoError(t, err)
	assert.True(t, result.UpToDate)
	assert.Empty(t, result.Differences)
	assert.Empty(t, result.Stale)

	require.NoError(t, os.WriteFile(filepath.Join(existing, "python", "knn.py"), []byte("# edited by hand\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(existing, "octave", "print.m")))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "octave", "removed.m"), []byte("disp(1);\n"), 0644))

	result, err = g.Check(ctx, job, existing)
	require.NoError(t, err)
	assert.False(t, result.UpToDate)
	assert.Equal(t, map[string][]string{
		"python": {"knn.py"},
		"octave": {"print.m (missing)"},
	}, result.Differences)
	assert.Equal(t, map[string][]string{"octave": {"removed.m"}}, result.Stale)
}

func TestCheckMissingTree(t *testing.T) {
	in := metagentest.WriteTree(t, map[string]string{"knn.json": knnJSON})

	result, err := newGenerator(t).Check(context.Background(), Job{InputDir: in, Targets: []string{"python"}}, filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.False(t, result.UpToDate)
	assert.Equal(t, []string{"knn.py (missing)"}, result.Differences["python"])
}

func TestCheckPropagatesFailures(t *testing.T) {
	in := metagentest.WriteTree(t, map[string]string{"knn.json": knnJSON})

	_, err := newGenerator(t).Check(context.Background(), Job{InputDir: in, Targets: []string{"cpp"}}, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))
}
