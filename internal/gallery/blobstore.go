package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gallery-go/internal/model"
)

// DefaultExtension is appended to a blob id to form its name in the vault.
const DefaultExtension = ".jpg"

const maxAllocateAttempts = 8

// BlobStore owns the blob namespace of a gallery inside a Vault.
// Blob names are "<id><extension>"; names that do not follow that convention
// are never created, listed, or deleted through a BlobStore.
type BlobStore struct {
	vault  Vault
	idgen  IDGenerator
	ext    string
	logger Logger

	mu            sync.Mutex
	issued        map[string]struct{}
	pins          map[string]int
	pendingDelete map[string]struct{}
}

// NewBlobStore creates a BlobStore over vault. An empty ext selects DefaultExtension.
func NewBlobStore(vault Vault, idgen IDGenerator, ext string, logger Logger) *BlobStore {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &BlobStore{
		vault:         vault,
		idgen:         idgen,
		ext:           ext,
		logger:        logger,
		issued:        make(map[string]struct{}),
		pins:          make(map[string]int),
		pendingDelete: make(map[string]struct{}),
	}
}

// Name returns the vault name of the blob with the given id.
func (b *BlobStore) Name(id string) string {
	return id + b.ext
}

// ParseName returns the id encoded in a vault name, and false if the name does
// not belong to this store.
func (b *BlobStore) ParseName(name string) (string, bool) {
	id, ok := strings.CutSuffix(name, b.ext)
	if !ok || !validID(id) {
		return "", false
	}
	return id, true
}

func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && !strings.ContainsAny(id, `/\`)
}

// Allocate returns a fresh id. It never returns an id it has issued before, an id
// for which taken reports true, or an id whose blob already exists in the vault.
func (b *BlobStore) Allocate(ctx context.Context, taken func(id string) bool) (string, error) {
	for range maxAllocateAttempts {
		id := b.idgen.New()
		if !validID(id) {
			continue
		}

		b.mu.Lock()
		_, seen := b.issued[id]
		b.mu.Unlock()
		if seen || (taken != nil && taken(id)) {
			continue
		}

		exists, err := b.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("checking id %s: %w", id, err)
		}
		if exists {
			continue
		}

		b.mu.Lock()
		b.issued[id] = struct{}{}
		b.mu.Unlock()
		return id, nil
	}
	return "", fmt.Errorf("no free id after %d attempts", maxAllocateAttempts)
}

// Write stores the bytes of r as the blob for id and returns the number of
// bytes written. On failure the returned error matches ErrBlobWriteFailed and
// no blob is visible under the id.
func (b *BlobStore) Write(ctx context.Context, id string, r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	if err := b.vault.Put(ctx, b.Name(id), cr); err != nil {
		// The vault commits atomically, but a remote sink may still hold debris.
		if delErr := b.vault.Delete(ctx, b.Name(id)); delErr != nil {
			b.logger.Warn("cleaning up failed write", "id", id, "error", delErr)
		}
		return cr.n, fmt.Errorf("%w: %s: %v", ErrBlobWriteFailed, id, err)
	}
	return cr.n, nil
}

// Exists reports whether the blob for id is present in the vault.
func (b *BlobStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := b.vault.Stat(ctx, b.Name(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrBlobNotFound) {
		return false, nil
	}
	return false, err
}

// Metadata returns the size and modification time of the blob for id.
// The error matches ErrBlobNotFound if the blob is missing.
func (b *BlobStore) Metadata(ctx context.Context, id string) (model.BlobInfo, error) {
	info, err := b.vault.Stat(ctx, b.Name(id))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return model.BlobInfo{}, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return model.BlobInfo{}, fmt.Errorf("stat blob %s: %w", id, err)
	}
	return info, nil
}

// Delete removes the blob for id. Deleting a missing blob succeeds. If export
// handles are open on the blob, the deletion happens when the last one closes.
//
// Callers must make sure id can no longer be pinned, either because its record
// is gone from the committed index or because it never had one. The vault call
// runs without holding the pin lock.
func (b *BlobStore) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	if b.pins[id] > 0 {
		b.pendingDelete[id] = struct{}{}
		b.mu.Unlock()
		b.logger.Debug("blob delete deferred until export is released", "id", id)
		return nil
	}
	b.mu.Unlock()

	if err := b.vault.Delete(ctx, b.Name(id)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBlobDeleteFailed, id, err)
	}
	return nil
}

// IDs returns the ids of all blobs in the vault that belong to this store.
func (b *BlobStore) IDs(ctx context.Context) ([]string, error) {
	names, err := b.vault.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := b.ParseName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Pinned reports whether an export handle is currently open on the blob for id.
func (b *BlobStore) Pinned(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[id] > 0
}

// ReadHandleFor opens the blob for id for export. The blob cannot be deleted
// until the returned handle is closed. Ownership stays with the store.
func (b *BlobStore) ReadHandleFor(ctx context.Context, id string) (*Handle, error) {
	b.mu.Lock()
	b.pins[id]++
	b.mu.Unlock()

	info, err := b.vault.Stat(ctx, b.Name(id))
	if err != nil {
		b.unpin(id)
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return nil, fmt.Errorf("stat blob %s: %w", id, err)
	}

	rc, err := b.vault.Open(ctx, b.Name(id))
	if err != nil {
		b.unpin(id)
		if errors.Is(err, ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return nil, fmt.Errorf("opening blob %s: %w", id, err)
	}

	return &Handle{
		ID:        id,
		Name:      b.Name(id),
		SizeBytes: info.SizeBytes,
		rc:        rc,
		release:   func() { b.unpin(id) },
	}, nil
}

func (b *BlobStore) unpin(id string) {
	b.mu.Lock()
	b.pins[id]--
	if b.pins[id] > 0 {
		b.mu.Unlock()
		return
	}
	delete(b.pins, id)

	_, pending := b.pendingDelete[id]
	delete(b.pendingDelete, id)
	b.mu.Unlock()

	if !pending {
		return
	}
	if err := b.vault.Delete(context.Background(), b.Name(id)); err != nil {
		b.logger.Warn("deferred blob delete failed, left for reconcile", "id", id, "error", err)
	}
}

// Handle is a readable view of one blob handed out for export.
// Close must be called to release the blob.
type Handle struct {
	ID        string
	Name      string
	SizeBytes int64

	rc      io.ReadCloser
	release func()
	once    sync.Once
}

func (h *Handle) Read(p []byte) (int, error) {
	return h.rc.Read(p)
}

// Close closes the underlying reader and releases the blob. Safe to call twice.
func (h *Handle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.rc.Close()
		h.release()
	})
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
