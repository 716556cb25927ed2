package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	rootPath string
}

// NewLocalStore creates a LocalStore rooted at rootPath.
func NewLocalStore(rootPath string) *LocalStore {
	return &LocalStore{rootPath: rootPath}
}

func (s *LocalStore) fullPath(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(cleaned)), nil
}

// Put writes content atomically via a temp file in the target directory
// and a rename.
func (s *LocalStore) Put(ctx context.Context, key string, reader io.Reader) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, reader); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), fullPath); err != nil {
		os.Remove(tempFile.Name())
		return fmt.Errorf("failed to rename temp file to %s: %w", fullPath, err)
	}

	return nil
}

// Get opens an artifact.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open artifact %s: %w", key, err)
	}
	return file, nil
}

// List returns the keys below prefix. A missing prefix yields no keys.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.rootPath
	if prefix != "" {
		p, err := s.fullPath(prefix)
		if err != nil {
			return nil, err
		}
		root = p
	}

	keys := []string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.rootPath, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list artifacts with prefix %s: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete removes an artifact.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}
