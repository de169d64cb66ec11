package gallery

import (
	"errors"
	"fmt"
)

// Blob errors, returned by BlobStore.
var (
	ErrBlobWriteFailed  = errors.New("blob write failed")
	ErrBlobNotFound     = errors.New("blob not found")
	ErrBlobDeleteFailed = errors.New("blob delete failed")
)

// Index errors, returned by Index.
var (
	ErrDuplicateID    = errors.New("duplicate record id")
	ErrRecordNotFound = errors.New("record not found")
	ErrIndexCorrupt   = errors.New("index document is corrupt")
)

// Gallery errors, the only errors Store hands to its callers.
var (
	ErrCaptureFailed     = errors.New("capture failed")
	ErrPersistFailed     = errors.New("saving the gallery index failed")
	ErrNotFound          = errors.New("photo not found")
	ErrExportUnavailable = errors.New("sharing is not available")
	ErrClosed            = errors.New("gallery is closed")
)

// translate maps a component failure onto a gallery error. The cause is kept as
// text only, so callers can match the gallery error but never the blob or index
// error underneath.
func translate(kind error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %v", op, kind, cause)
}
