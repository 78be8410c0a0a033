package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is a key-value store of files in one directory. Put replaces the value
// atomically so readers see either the old or the new content.
type FS struct {
	dir string
}

// NewFS creates the directory if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FS{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FS) Dir() string { return s.dir }

// Path returns the file backing key.
func (s *FS) Path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

// Put writes value under key, replacing any previous value.
func (s *FS) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key.
func (s *FS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether key is present.
func (s *FS) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (s *FS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Rename moves oldKey to newKey without overwriting an existing newKey.
func (s *FS) Rename(ctx context.Context, oldKey, newKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldPath, err := s.Path(oldKey)
	if err != nil {
		return err
	}
	newPath, err := s.Path(newKey)
	if err != nil {
		return err
	}
	if oldKey == newKey {
		return nil
	}

	// Link fails if the target exists, unlike Rename.
	if err := os.Link(oldPath, newPath); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return fmt.Errorf("%s: %w", newKey, ErrExists)
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%s: %w", oldKey, ErrNotFound)
		default:
			return fmt.Errorf("rename %s: %w", oldKey, err)
		}
	}
	if err := os.Remove(oldPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldKey, err)
	}
	return nil
}

// Keys lists stored keys in lexical order, skipping in-flight writes.
func (s *FS) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}
