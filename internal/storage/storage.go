package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a key has no stored object
var ErrObjectNotFound = errors.New("object not found")

// Store persists uploaded objects under opaque keys
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Config selects and configures a Store backend
type Config struct {
	Driver   string `yaml:"driver"`
	RootPath string `yaml:"root_path"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// New builds the Store named by cfg.Driver
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDiskStore(cfg.RootPath)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewKey returns a unique storage key for an uploaded file name
func NewKey(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return uuid.NewString() + "_" + base
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
