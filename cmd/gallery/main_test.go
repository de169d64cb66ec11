package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"gallery-go/internal/model"
)

func TestWriteList(t *testing.T) {
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	records := []model.MediaRecord{{ID: "p1", CapturedAt: at}, {ID: "p2", CapturedAt: at.Add(time.Minute)}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeList(&buf, records, "json"); err != nil {
			t.Fatalf("writeList() error = %v", err)
		}
		if !strings.Contains(buf.String(), `"id": "p1"`) || !strings.Contains(buf.String(), `"capturedAt": "2024-06-15T12:00:00Z"`) {
			t.Errorf("json output = %s", buf.String())
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeList(&buf, records, "yaml"); err != nil {
			t.Fatalf("writeList() error = %v", err)
		}
		var got []listEntry
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("yaml output not parseable: %v\n%s", err, buf.String())
		}
		if len(got) != 2 || got[1].ID != "p2" || !got[1].CapturedAt.Equal(at.Add(time.Minute)) {
			t.Errorf("yaml entries = %+v", got)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeList(&buf, records, "text"); err != nil {
			t.Fatalf("writeList() error = %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[0], "p1  ") {
			t.Errorf("text output = %q", buf.String())
		}
	})

	t.Run("text empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeList(&buf, nil, "text"); err != nil {
			t.Fatalf("writeList() error = %v", err)
		}
		if buf.String() != "No photos.\n" {
			t.Errorf("text output = %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := writeList(&bytes.Buffer{}, records, "xml"); err == nil {
			t.Fatal("writeList() expected error")
		}
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseApp(t *testing.T) {
	errClose := errors.New("textfile not writable")
	errRun := errors.New("delete failed")

	tests := []struct {
		name     string
		runErr   error
		closeErr error
		want     []error
	}{
		{name: "clean", runErr: nil, closeErr: nil},
		{name: "close fails after success", runErr: nil, closeErr: errClose, want: []error{errClose}},
		{name: "close fails after failure", runErr: errRun, closeErr: errClose, want: []error{errRun, errClose}},
		{name: "command fails", runErr: errRun, closeErr: nil, want: []error{errRun}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := false
			err := tt.runErr
			closeApp(closerFunc(func() error {
				closed = true
				return tt.closeErr
			}), &err)

			if !closed {
				t.Fatal("Close not called")
			}
			if len(tt.want) == 0 {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("err = %v, want it to wrap %v", err, want)
				}
			}
		})
	}
}
