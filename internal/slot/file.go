package slot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSlot keeps the index document in a single file. Every Save writes a temp
// file next to it, syncs it and renames it over the old document.
type FileSlot struct {
	path string
}

// NewFileSlot creates a slot stored at path. The parent directory is created if needed.
func NewFileSlot(path string) (*FileSlot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return &FileSlot{path: path}, nil
}

// Load returns the stored document, or nil if no document has been saved yet.
func (s *FileSlot) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return data, nil
}

// Save atomically replaces the document.
func (s *FileSlot) Save(_ context.Context, doc []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-"+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Close is a no-op.
func (s *FileSlot) Close() error { return nil }

// Compile-time check that FileSlot implements Slot interface
var _ Slot = (*FileSlot)(nil)
