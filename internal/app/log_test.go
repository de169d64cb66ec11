package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGalleryHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "capture-1",
			level:   slog.LevelInfo,
			message: "photo captured",
			want:    "2024-06-15T14:30:45Z\tINFO\tcapture-1\tphoto captured\n",
		},
		{
			name:    "warn level",
			opID:    "open-1",
			level:   slog.LevelWarn,
			message: "index entry dropped, blob missing",
			want:    "2024-06-15T14:30:45Z\tWARN\topen-1\tindex entry dropped, blob missing\n",
		},
		{
			name:    "with record attrs",
			opID:    "capture-2",
			level:   slog.LevelInfo,
			message: "photo captured",
			attrs:   []slog.Attr{slog.String("id", "p1"), slog.Int64("size", 4096)},
			want:    "2024-06-15T14:30:45Z\tINFO\tcapture-2\tphoto captured\tid=p1\tsize=4096\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &galleryHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestGalleryHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &galleryHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}
	h2 := h.WithAttrs([]slog.Attr{slog.String("vault", "local")}).(*galleryHandler)

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "opened", 0)
	r.AddAttrs(slog.String("id", "p1"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "vault=local", "id=p1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %s: %q", want, got)
		}
	}
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
}

func TestGalleryHandler_Enabled(t *testing.T) {
	tests := []struct {
		configured string
		level      slog.Level
		want       bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelDebug, false},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelInfo, false},
		{"WARN", slog.LevelError, true},
		{"error", slog.LevelWarn, false},
		{"", slog.LevelDebug, false},
		{"chatty", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		h := &galleryHandler{level: parseLevel(tt.configured)}
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("level %q: Enabled(%v) = %v, want %v", tt.configured, tt.level, got, tt.want)
		}
	}

	if !(&galleryHandler{}).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("handler without a level should log everything")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", "debug")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Debug("hello", "k", "v")
	data, err := os.ReadFile(filepath.Join(dir, "gallery.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-op\thello\tk=v") {
		t.Errorf("log file = %q", data)
	}
}
