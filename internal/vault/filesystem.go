package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

const tempPrefix = ".tmp-"

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores blobs as files in a directory structure:
//
//	<root>/
//	  photos/
//	    <name>       (one file per blob)
//	    .tmp-*       (in-flight writes, renamed into place on commit)
type FileSystemVault struct {
	name     string
	root     string
	photoDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
// Temp files left behind by interrupted writes are removed.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	photoDir := filepath.Join(root, "photos")

	if err := os.MkdirAll(photoDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}

	v := &FileSystemVault{
		name:     name,
		root:     root,
		photoDir: photoDir,
	}
	if err := v.removeStaleTemps(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *FileSystemVault) removeStaleTemps() error {
	entries, err := os.ReadDir(v.photoDir)
	if err != nil {
		return fmt.Errorf("reading photo directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(v.photoDir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing stale temp file: %w", err)
		}
	}
	return nil
}

func (v *FileSystemVault) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(v.photoDir, name), nil
}

// Put writes r to a temp file, syncs it and renames it into place, so a blob
// is either fully present under name or absent.
func (v *FileSystemVault) Put(ctx context.Context, name string, r io.Reader) error {
	destPath, err := v.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.writeFile(destPath, r)
}

// Stat returns the size and modification time of a blob.
func (v *FileSystemVault) Stat(_ context.Context, name string) (model.BlobInfo, error) {
	p, err := v.path(name)
	if err != nil {
		return model.BlobInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.BlobInfo{}, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
		}
		return model.BlobInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return model.BlobInfo{}, fmt.Errorf("%w: %s is not a regular file", gallery.ErrBlobNotFound, name)
	}
	return model.BlobInfo{Name: name, SizeBytes: info.Size(), ModifiedAt: info.ModTime().UTC()}, nil
}

// Open opens a blob for reading.
func (v *FileSystemVault) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := v.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes a blob. Missing blobs are ignored.
func (v *FileSystemVault) Delete(_ context.Context, name string) error {
	p, err := v.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// List returns the names of all blobs. Directories and dot files, including
// in-flight temp files, are skipped.
func (v *FileSystemVault) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(v.photoDir)
	if err != nil {
		return nil, fmt.Errorf("reading photo directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	info, err = os.Stat(v.photoDir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.photoDir)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader) error {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements gallery.Vault interface
var _ gallery.Vault = (*FileSystemVault)(nil)
