package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirExport(t *testing.T) {
	ctx := context.Background()

	t.Run("writes file", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewDirExport(dir)
		if !sink.Available(ctx) {
			t.Fatal("Available() = false for writable dir")
		}
		if err := sink.Export(ctx, "p1.jpg", strings.NewReader("photo")); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		got, err := os.ReadFile(filepath.Join(dir, "p1.jpg"))
		if err != nil || string(got) != "photo" {
			t.Fatalf("exported content = %q, %v", got, err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("dir has %d entries, want 1 (probe or temp file left behind)", len(entries))
		}
	})

	t.Run("missing directory is unavailable", func(t *testing.T) {
		sink := NewDirExport(filepath.Join(t.TempDir(), "gone"))
		if sink.Available(ctx) {
			t.Error("Available() = true for missing dir")
		}
	})

	t.Run("failed read leaves nothing", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewDirExport(dir)
		err := sink.Export(ctx, "p1.jpg", errReader{})
		if err == nil {
			t.Fatal("Export() expected error")
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("dir has %d entries after failed export, want 0", len(entries))
		}
	})

	t.Run("rejects unsafe names", func(t *testing.T) {
		sink := NewDirExport(t.TempDir())
		for _, name := range []string{"", "../p1.jpg", ".hidden"} {
			if err := sink.Export(ctx, name, strings.NewReader("x")); err == nil {
				t.Errorf("Export(%q) expected error", name)
			}
		}
	})
}

func TestWriterExport(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterExport(&buf)
	if !sink.Available(context.Background()) {
		t.Fatal("Available() = false")
	}
	if err := sink.Export(context.Background(), "p1.jpg", strings.NewReader("photo")); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.String() != "photo" {
		t.Errorf("written = %q, want photo", buf.String())
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
