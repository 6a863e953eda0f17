package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// OpenWithRecovery opens path and, if the file is incompatible, deletes that
// one file and retries exactly once. A second failure is returned as is;
// there are no repeated retries.
func OpenWithRecovery(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := Open(path, opts...)
	if err == nil {
		return s, nil
	}
	if !IsIncompatible(err) {
		return nil, err
	}

	logger.Warn("store file incompatible, resetting it", "path", path, "error", err)
	if rmErr := removeStoreFiles(path); rmErr != nil {
		return nil, &StoreOpenError{Path: path, Reason: "reset store file", Err: rmErr}
	}

	s, err = Open(path, opts...)
	if err != nil {
		logger.Error("store still unusable after reset", "path", path, "error", err)
		return nil, err
	}
	logger.Info("store file recreated", "path", path)
	return s, nil
}

// OpenRoleWithRecovery is OpenWithRecovery for the role's file inside dir.
func OpenRoleWithRecovery(dir string, role Role, logger *slog.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StoreOpenError{Path: dir, Reason: "create data directory", Err: err}
	}
	return OpenWithRecovery(filepath.Join(dir, role.FileName()), logger, opts...)
}

// removeStoreFiles deletes the store file and its WAL side files.
func removeStoreFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
