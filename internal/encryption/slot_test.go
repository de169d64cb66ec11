package encryption

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"gallery-go/internal/config"
	"gallery-go/internal/slot"
)

func TestSealedSlot_StoresSealedDocument(t *testing.T) {
	ctx := context.Background()
	inner := slot.NewMemorySlot(nil)
	s := NewSealedSlot(inner, TestSealer{})

	doc := []byte(`[{"id":"a","capturedAt":1}]`)
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, _ := inner.Load(ctx)
	if !bytes.HasPrefix(raw, testHeader) {
		t.Errorf("stored document is not sealed: %q", raw)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("Load() = %q, want %q", got, doc)
	}
}

func TestSealedSlot_LoadMissing(t *testing.T) {
	s := NewSealedSlot(slot.NewMemorySlot(nil), TestSealer{})

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() = %q, want nil", got)
	}
}

func TestSealedSlot_AcceptsPlaintextDocument(t *testing.T) {
	plain := []byte(` [{"id":"a","capturedAt":1}]`)
	s := NewSealedSlot(slot.NewMemorySlot(plain), TestSealer{})

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Load() = %q, want %q", got, plain)
	}
}

func TestSealedSlot_UnsealFailure(t *testing.T) {
	s := NewSealedSlot(slot.NewMemorySlot([]byte("garbage")), TestSealer{})

	if _, err := s.Load(context.Background()); err == nil {
		t.Error("Load() expected error for unreadable sealed document")
	}
}

func TestNewSealerFromConfig(t *testing.T) {
	noPassphrase := func() (string, error) {
		t.Fatal("passphrase requested")
		return "", nil
	}

	t.Run("none", func(t *testing.T) {
		s, err := NewSealerFromConfig(config.EncryptionConfig{Type: "none"}, noPassphrase)
		if err != nil || s != nil {
			t.Errorf("NewSealerFromConfig() = %v, %v; want nil, nil", s, err)
		}
	})

	t.Run("test", func(t *testing.T) {
		s, err := NewSealerFromConfig(config.EncryptionConfig{Type: "test"}, noPassphrase)
		if err != nil {
			t.Fatalf("NewSealerFromConfig() error = %v", err)
		}
		if _, ok := s.(TestSealer); !ok {
			t.Errorf("NewSealerFromConfig() = %T, want TestSealer", s)
		}
	})

	t.Run("age without keys", func(t *testing.T) {
		k := newTestKeyring(t)
		cfg := config.EncryptionConfig{Type: "age", PublicKeyPath: k.publicKeyPath, PrivateKeyPath: k.privateKeyPath}
		if _, err := NewSealerFromConfig(cfg, noPassphrase); err == nil {
			t.Error("NewSealerFromConfig() expected error without keys")
		}
	})

	t.Run("age", func(t *testing.T) {
		k := newTestKeyring(t)
		if err := k.Setup("pw"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		cfg := config.EncryptionConfig{Type: "age", PublicKeyPath: k.publicKeyPath, PrivateKeyPath: k.privateKeyPath}

		s, err := NewSealerFromConfig(cfg, func() (string, error) { return "pw", nil })
		if err != nil {
			t.Fatalf("NewSealerFromConfig() error = %v", err)
		}
		if _, ok := s.(*AgeSealer); !ok {
			t.Errorf("NewSealerFromConfig() = %T, want *AgeSealer", s)
		}

		_, err = NewSealerFromConfig(cfg, func() (string, error) { return "", errors.New("no tty") })
		if err == nil {
			t.Error("NewSealerFromConfig() expected error when passphrase fails")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewSealerFromConfig(config.EncryptionConfig{Type: "rot13"}, noPassphrase); err == nil {
			t.Error("NewSealerFromConfig() expected error")
		}
	})
}
