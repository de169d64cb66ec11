package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// BytesCapture is a capture device that returns a fixed image.
type BytesCapture struct {
	Data []byte
	Err  error
}

func (c BytesCapture) Capture(context.Context) (io.ReadCloser, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return io.NopCloser(bytes.NewReader(c.Data)), nil
}

// Image returns n deterministic bytes standing in for a photo.
func Image(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// GateReader blocks on its first Read until Release is called. Started is
// closed once a reader is waiting.
type GateReader struct {
	r       io.Reader
	Started chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewGateReader wraps data.
func NewGateReader(data []byte) *GateReader {
	return &GateReader{
		r:       bytes.NewReader(data),
		Started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *GateReader) Read(p []byte) (int, error) {
	g.once.Do(func() {
		close(g.Started)
		<-g.release
	})
	return g.r.Read(p)
}

// Release unblocks the reader.
func (g *GateReader) Release() {
	close(g.release)
}

// BufferExport is an export sink that keeps what it receives in memory.
type BufferExport struct {
	Unavailable bool
	Err         error

	mu       sync.Mutex
	received map[string][]byte
}

func (b *BufferExport) Available(context.Context) bool {
	return !b.Unavailable
}

func (b *BufferExport) Export(_ context.Context, name string, r io.Reader) error {
	if b.Err != nil {
		return b.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.received == nil {
		b.received = make(map[string][]byte)
	}
	b.received[name] = data
	return nil
}

// Received returns the bytes exported under name.
func (b *BufferExport) Received(name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.received[name]
	return data, ok
}
