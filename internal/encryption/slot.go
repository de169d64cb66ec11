package encryption

import (
	"bytes"
	"context"
	"fmt"

	"gallery-go/internal/gallery"
)

// SealedSlot wraps an index slot so the document is only ever stored sealed.
type SealedSlot struct {
	inner  gallery.IndexSlot
	sealer Sealer
}

// NewSealedSlot wraps inner.
func NewSealedSlot(inner gallery.IndexSlot, sealer Sealer) *SealedSlot {
	return &SealedSlot{inner: inner, sealer: sealer}
}

// Load unseals the stored document. A plaintext JSON document, written before
// sealing was enabled, is returned as is and sealed on the next Save.
func (s *SealedSlot) Load(ctx context.Context) ([]byte, error) {
	doc, err := s.inner.Load(ctx)
	if err != nil || doc == nil {
		return doc, err
	}
	if trimmed := bytes.TrimSpace(doc); len(trimmed) == 0 || trimmed[0] == '[' {
		return doc, nil
	}
	plain, err := s.sealer.Unseal(doc)
	if err != nil {
		return nil, fmt.Errorf("unsealing index: %w", err)
	}
	return plain, nil
}

// Save seals doc and stores it.
func (s *SealedSlot) Save(ctx context.Context, doc []byte) error {
	sealed, err := s.sealer.Seal(doc)
	if err != nil {
		return fmt.Errorf("sealing index: %w", err)
	}
	return s.inner.Save(ctx, sealed)
}

var _ gallery.IndexSlot = (*SealedSlot)(nil)
