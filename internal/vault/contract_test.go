package vault

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"gallery-go/internal/gallery"
)

// testVaultContract exercises the behaviour every gallery.Vault must share.
func testVaultContract(t *testing.T, newVault func(t *testing.T) gallery.Vault) {
	ctx := context.Background()

	t.Run("put then stat and open", func(t *testing.T) {
		v := newVault(t)
		if err := v.Put(ctx, "a.jpg", strings.NewReader("hello world")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		info, err := v.Stat(ctx, "a.jpg")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.SizeBytes != 11 {
			t.Errorf("SizeBytes = %d, want 11", info.SizeBytes)
		}
		if info.ModifiedAt.IsZero() {
			t.Error("ModifiedAt is zero")
		}

		rc, err := v.Open(ctx, "a.jpg")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if string(data) != "hello world" {
			t.Errorf("content = %q, want %q", data, "hello world")
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		v := newVault(t)
		if _, err := v.Stat(ctx, "nope.jpg"); !errors.Is(err, gallery.ErrBlobNotFound) {
			t.Errorf("Stat() error = %v, want ErrBlobNotFound", err)
		}
		if _, err := v.Open(ctx, "nope.jpg"); !errors.Is(err, gallery.ErrBlobNotFound) {
			t.Errorf("Open() error = %v, want ErrBlobNotFound", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		v := newVault(t)
		if err := v.Put(ctx, "a.jpg", strings.NewReader("x")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		for i := range 2 {
			if err := v.Delete(ctx, "a.jpg"); err != nil {
				t.Fatalf("Delete() #%d error = %v", i+1, err)
			}
		}
		if _, err := v.Stat(ctx, "a.jpg"); !errors.Is(err, gallery.ErrBlobNotFound) {
			t.Errorf("Stat() after delete error = %v, want ErrBlobNotFound", err)
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		v := newVault(t)
		for _, name := range []string{"c.jpg", "a.jpg", "b.jpg"} {
			if err := v.Put(ctx, name, strings.NewReader(name)); err != nil {
				t.Fatalf("Put(%s) error = %v", name, err)
			}
		}
		got, err := v.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []string{"a.jpg", "b.jpg", "c.jpg"}
		if !slices.Equal(got, want) {
			t.Errorf("List() = %v, want %v", got, want)
		}
	})

	t.Run("failed put leaves nothing behind", func(t *testing.T) {
		v := newVault(t)
		err := v.Put(ctx, "a.jpg", io.MultiReader(strings.NewReader("partial"), errReader{}))
		if err == nil {
			t.Fatal("Put() expected error")
		}
		if _, err := v.Stat(ctx, "a.jpg"); !errors.Is(err, gallery.ErrBlobNotFound) {
			t.Errorf("Stat() error = %v, want ErrBlobNotFound", err)
		}
		names, err := v.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(names) != 0 {
			t.Errorf("List() = %v, want empty", names)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := newVault(t).ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("device unplugged")
}
