package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gallery-go/internal/gallery"
)

// ImageExtensions are the file suffixes picked up when importing a directory.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".heic", ".webp", ".gif", ".tif", ".tiff"}

// Resolve makes rawPath absolute and rejects the file types an import cannot read.
func Resolve(rawPath string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", abs)
	case mode&os.ModeDevice != 0:
		return "", nil, fmt.Errorf("device files not supported: %s", abs)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes not supported: %s", abs)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets not supported: %s", abs)
	}
	return abs, info, nil
}

// IsImage reports whether name carries one of ImageExtensions.
func IsImage(name string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(name)))
}

// FindImages returns the image files under dir in lexical order, skipping
// anything the matcher ignores. Ignored directories are not descended into.
func FindImages(dir string, recursive bool, ignore *IgnoreMatcher) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive || ignore.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignore.Match(rel) || !IsImage(p) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return paths, nil
}

// FileCapture is a capture device backed by a photo already on disk.
type FileCapture struct {
	path string
}

// NewFileCapture resolves path and checks that it is a regular file.
func NewFileCapture(path string) (*FileCapture, error) {
	abs, info, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", abs)
	}
	return &FileCapture{path: abs}, nil
}

// Path returns the absolute path of the source file.
func (c *FileCapture) Path() string {
	return c.path
}

// Capture opens the source file.
func (c *FileCapture) Capture(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", c.path, err)
	}
	return f, nil
}

// Remove deletes the source file. Call it only once the gallery holds the copy.
func (c *FileCapture) Remove() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", c.path, err)
	}
	return nil
}

var _ gallery.CaptureDevice = (*FileCapture)(nil)
