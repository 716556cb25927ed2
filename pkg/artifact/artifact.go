package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid artifact key")

// Store persists exported run artifacts such as CSV tables and GeoJSON.
type Store interface {
	// Put writes content under key, replacing any previous content.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get opens the content stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys below prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the content stored under key.
	Delete(ctx context.Context, key string) error
}

// RunKey names an artifact of a run.
func RunKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

// cleanKey normalises key to a slash separated relative path.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// PutJSON stores v as indented JSON.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, bytes.NewReader(data))
}
