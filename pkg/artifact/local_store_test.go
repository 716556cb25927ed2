package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()

	key := RunKey("run-1", "summary.csv")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("ID,type\n")))
	_, err := os.Stat(filepath.Join(root, "runs", "run-1", "summary.csv"))
	require.NoError(t, err)

	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, "ID,type\n", string(data))

	// overwrite keeps a single file
	require.NoError(t, store.Put(ctx, key, strings.NewReader("new")))
	require.NoError(t, PutJSON(ctx, store, RunKey("run-1", "network.geojson"), map[string]string{"type": "FeatureCollection"}))

	keys, err := store.List(ctx, "runs/run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/run-1/network.geojson", "runs/run-1/summary.csv"}, keys)

	reader, err = store.Get(ctx, RunKey("run-1", "network.geojson"))
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.NewDecoder(reader).Decode(&doc))
	reader.Close()
	assert.Equal(t, "FeatureCollection", doc["type"])

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, key), ErrNotFound))

	keys, err = store.List(ctx, "runs/absent")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestInvalidKeys(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../escape.csv", "runs/../../x", "", "a//b"} {
		err := store.Put(ctx, key, strings.NewReader("x"))
		assert.True(t, errors.Is(err, ErrInvalidKey), "key %q: %v", key, err)
	}
}
