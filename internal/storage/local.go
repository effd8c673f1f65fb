package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// localStorage keeps payloads as plain files under a root directory.
// Writes go to a temp file first and are renamed into place, so readers never
// observe a partially written image.
type localStorage struct {
	root string
}

// NewLocal creates the root directory if needed and returns a filesystem backed Storage.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &localStorage{root: root}, nil
}

func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	fullPath := filepath.Join(l.root, key)
	tmp, err := os.CreateTemp(l.root, ".upload-*.tmp")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return ObjectInfo{}, fmt.Errorf("rename into place: %w", err)
	}

	return ObjectInfo{
		Key:         key,
		Size:        size,
		ContentType: opt.ContentType,
		Location:    fullPath,
	}, nil
}

// validateKey only accepts plain file names.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
