package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"go.uber.org/multierr"
)

// LocalStorage implements ports.StorageProvider for local filesystem
type LocalStorage struct{}

// NewLocalStorage creates a new local storage provider
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.NewIOError("stat "+path, err)
	}
	return true, nil
}

// Size returns file size in bytes
func (s *LocalStorage) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, pkgerrors.NewIOError("stat "+path, err)
	}
	return info.Size(), nil
}

// Remove deletes a file
func (s *LocalStorage) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		return pkgerrors.NewIOError("remove "+path, err)
	}
	return nil
}

// WriteFile writes data next to path under a temporary name and renames it
// into place, so readers never observe a half-written export
func (s *LocalStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.NewIOError("create directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return pkgerrors.NewIOError("create temp file in "+dir, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	err = multierr.Combine(err, tmp.Sync(), tmp.Close())
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.NewIOError("write "+path, err)
	}
	return nil
}

var _ ports.StorageProvider = (*LocalStorage)(nil)
