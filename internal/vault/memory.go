package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

type memoryBlob struct {
	data    []byte
	modTime time.Time
}

// MemoryVault is an in-memory implementation of the Vault interface.
// It is useful for testing and for throwaway galleries.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name  string
	clock gallery.Clock
	blobs map[string]memoryBlob
	mu    sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return NewMemoryVaultWithClock(name, gallery.RealClock{})
}

// NewMemoryVaultWithClock creates an in-memory vault that stamps blobs with
// times from clock.
func NewMemoryVaultWithClock(name string, clock gallery.Clock) *MemoryVault {
	return &MemoryVault{
		name:  name,
		clock: clock,
		blobs: make(map[string]memoryBlob),
	}
}

// Put stores the content of r under name. Nothing is stored if reading r fails.
func (m *MemoryVault) Put(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = memoryBlob{data: data, modTime: m.clock.Now()}
	return nil
}

// Stat returns the size and modification time of a blob.
func (m *MemoryVault) Stat(_ context.Context, name string) (model.BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[name]
	if !ok {
		return model.BlobInfo{}, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
	}
	return model.BlobInfo{Name: name, SizeBytes: int64(len(b.data)), ModifiedAt: b.modTime}, nil
}

// Open returns a reader over a snapshot of the blob.
func (m *MemoryVault) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Delete removes a blob. Missing blobs are ignored.
func (m *MemoryVault) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// List returns all blob names in sorted order.
func (m *MemoryVault) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryVault implements gallery.Vault interface
var _ gallery.Vault = (*MemoryVault)(nil)
