package slot

import (
	"context"
	"slices"
	"sync"
)

// MemorySlot is an in-memory implementation of the Slot interface.
// This implementation is safe for concurrent use.
type MemorySlot struct {
	mu    sync.RWMutex
	doc   []byte
	saves int
}

// NewMemorySlot creates a slot, optionally seeded with a document.
func NewMemorySlot(doc []byte) *MemorySlot {
	return &MemorySlot{doc: slices.Clone(doc)}
}

func (s *MemorySlot) Load(context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc), nil
}

func (s *MemorySlot) Save(_ context.Context, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = slices.Clone(doc)
	if s.doc == nil {
		s.doc = []byte{}
	}
	s.saves++
	return nil
}

// Saves returns how many times the document was saved.
func (s *MemorySlot) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close is a no-op.
func (s *MemorySlot) Close() error { return nil }

var _ Slot = (*MemorySlot)(nil)
