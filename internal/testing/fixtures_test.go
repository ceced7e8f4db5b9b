package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/metagen/cache"
)

func TestCreateTestStore(t *testing.T) {
	store := CreateTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &cache.Entry{Key: "k", Target: "python", Program: "knn", Output: "x\n"}))
	e, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "x\n", e.Output)
}

func TestWriteTree(t *testing.T) {
	dir := WriteTree(t, map[string]string{"a/b.json": "{}", "c.yaml": ""})

	data, err := os.ReadFile(filepath.Join(dir, "a", "b.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.FileExists(t, filepath.Join(dir, "c.yaml"))
}
