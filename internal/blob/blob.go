// Package blob stages uploaded files and extraction results in an object store.
//
// Every backend implements Store and reports provider failures wrapped in
// entity.ErrStorage, so callers never inspect provider-specific error types.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"text-extraction-service/internal/entity"
)

// Store is safe for concurrent use by multiple goroutines.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Download(ctx context.Context, key, localPath string) error
	Remove(ctx context.Context, key string) error
}

func storageErr(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", entity.ErrStorage, op, key, err)
}

// writeLocal creates the parent directory of localPath and writes data to it.
func writeLocal(localPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}
