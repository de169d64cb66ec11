package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gallery-go/internal/gallery"
)

// DirExport delivers exported photos into a local directory.
type DirExport struct {
	dir string
}

// NewDirExport returns a sink writing into dir. The directory is not created.
func NewDirExport(dir string) *DirExport {
	return &DirExport{dir: dir}
}

// Available reports whether dir exists and accepts new files.
func (e *DirExport) Available(ctx context.Context) bool {
	info, err := os.Stat(e.dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe, err := os.CreateTemp(e.dir, ".probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}

// Export writes r to dir/name through a temp file, so a failed export
// leaves no partial file behind.
func (e *DirExport) Export(ctx context.Context, name string, r io.Reader) error {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid export name %q", name)
	}

	tmp, err := os.CreateTemp(e.dir, ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(e.dir, name)); err != nil {
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	ok = true
	return nil
}

// WriterExport streams exported photos to a single writer, such as stdout.
type WriterExport struct {
	w io.Writer
}

// NewWriterExport returns a sink writing to w.
func NewWriterExport(w io.Writer) *WriterExport {
	return &WriterExport{w: w}
}

// Available always reports true.
func (e *WriterExport) Available(ctx context.Context) bool {
	return true
}

// Export copies r to the writer.
func (e *WriterExport) Export(ctx context.Context, name string, r io.Reader) error {
	if _, err := io.Copy(e.w, r); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

var (
	_ gallery.ExportSink = (*DirExport)(nil)
	_ gallery.ExportSink = (*WriterExport)(nil)
)
