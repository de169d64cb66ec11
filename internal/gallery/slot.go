package gallery

import "context"

// IndexSlot is the durable key-value slot holding the serialized index document.
// The document is overwritten wholesale on every Save.
type IndexSlot interface {
	// Load returns the stored document, or nil with no error if none has been saved.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored document. Save must be durable before it returns.
	Save(ctx context.Context, doc []byte) error
}
