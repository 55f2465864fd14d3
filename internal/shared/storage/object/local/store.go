// Package local keeps objects as files under one directory, for development
// and single-node deployments.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tga-backend/internal/shared/storage/object"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Put stages the body in a temp file next to its destination and renames it
// into place, so Open never sees a partial object. The content type is not
// kept.
func (s *Store) Put(ctx context.Context, key string, _ string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rel, err := relPath(key)
	if err != nil {
		return 0, err
	}
	dest := filepath.Join(s.root, rel)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dest)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("store %s: %w", key, err)
	}
	return n, nil
}

// Open reads through an os.Root so symlinks inside the store cannot point
// outside it.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := relPath(key)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(rel)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
	case err != nil:
		return nil, err
	}
	return f, nil
}

// relPath maps a slash-separated key to a path relative to the store root.
func relPath(key string) (string, error) {
	clean := path.Clean(strings.TrimSpace(key))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, `\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.FromSlash(clean), nil
}

var _ object.Store = (*Store)(nil)
