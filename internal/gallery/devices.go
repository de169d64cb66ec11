package gallery

import (
	"context"
	"io"
)

// CaptureDevice produces the raw bytes of one photo on request.
// The store only copies these bytes; it never interprets them.
type CaptureDevice interface {
	// Capture returns a handle over a freshly captured image. The caller closes it.
	Capture(ctx context.Context) (io.ReadCloser, error)
}

// ExportSink hands a blob to an external agent, such as a share target,
// without retaining a copy inside the gallery.
type ExportSink interface {
	// Available reports whether the sink can accept exports right now.
	Available(ctx context.Context) bool

	// Export consumes r, the content of the blob called name.
	Export(ctx context.Context, name string, r io.Reader) error
}
