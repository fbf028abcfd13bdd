package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eleven-am/todoapi/internal/logger"
)

// DiskStore keeps objects as files under a root directory
type DiskStore struct {
	root string
}

// NewDiskStore creates root if needed and returns a store writing into it
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (d *DiskStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(d.root, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	logger.Storage().WithField("key", key).Debugf("Stored %d bytes on disk", len(data))
	return nil
}

func (d *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(d.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}
