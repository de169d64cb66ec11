package gallery

import (
	"context"
	"io"

	"gallery-go/internal/model"
)

// Vault is the blob sink: a durable, byte-addressable area holding named blobs.
// Implementations must be safe for concurrent use.
type Vault interface {
	// Put durably stores the bytes read from r under name. A failed Put must not
	// leave a partially written blob visible under name.
	Put(ctx context.Context, name string, r io.Reader) error

	// Stat returns metadata for a stored blob. Returns an error matching
	// ErrBlobNotFound if no blob with that name exists.
	Stat(ctx context.Context, name string) (model.BlobInfo, error)

	// Open returns a reader over a stored blob. Returns an error matching
	// ErrBlobNotFound if no blob with that name exists.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a name that does not exist is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored blobs, sorted.
	List(ctx context.Context) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
