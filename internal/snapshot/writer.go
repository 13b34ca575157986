// Package snapshot persists the statistics document so that a reader in
// another process only ever observes a complete version of it.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"Go2NetGuard/internal/model"
)

// Writer replaces the statistics document at a fixed path. A new version is
// written to a temporary file in the same directory, synced and renamed over
// the old one, so readers see either the previous or the new document.
type Writer struct {
	path  string
	fsync bool
}

// NewWriter creates a writer for path, creating its directory if needed.
// With fsync disabled the rename is still atomic but not durable across a
// power loss.
func NewWriter(path string, fsync bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Writer{path: path, fsync: fsync}, nil
}

// Write serializes snap and atomically replaces the document.
func (w *Writer) Write(snap *model.StatisticsSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot to json: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if w.fsync {
		if err := tmp.Sync(); err != nil {
			cleanup()
			return fmt.Errorf("failed to sync snapshot: %w", err)
		}
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot '%s': %w", w.path, err)
	}
	return nil
}
