package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var validKey = regexp.MustCompile(`^[a-z0-9_]+$`)

// FileAdapter writes one JSON file per key under a directory.
type FileAdapter struct {
	dir string
}

func NewFileAdapter(dir string) (*FileAdapter, error) {
	if dir == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileAdapter{dir: dir}, nil
}

func (a *FileAdapter) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(a.dir, key+".json"), nil
}

func (a *FileAdapter) Save(_ context.Context, key string, value []byte) error {
	path, err := a.path(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(value, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (a *FileAdapter) Load(_ context.Context, key string) ([]byte, error) {
	path, err := a.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (a *FileAdapter) Close() error { return nil }
