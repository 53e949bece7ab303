package mock

import (
	"context"
	"io"
	"sync"

	"github.com/fwojciec/ndchat"
)

// Interface compliance checks.
var (
	_ ndchat.Transport   = (*Transport)(nil)
	_ ndchat.ChunkSource = (*ChunkSource)(nil)
)

// Transport is a test double for ndchat.Transport.
// Set OpenFn before calling Open.
type Transport struct {
	OpenFn func(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error)
}

// Open delegates to OpenFn.
func (t *Transport) Open(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
	return t.OpenFn(ctx, req)
}

// ChunkSource is a test double for ndchat.ChunkSource.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// because callers always close the source and rarely need custom behavior.
type ChunkSource struct {
	NextFn  func() ([]byte, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *ChunkSource) Next() ([]byte, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *ChunkSource) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Chunks returns a ChunkSource that serves chunks in order, then io.EOF.
// After Close, Next returns ndchat.ErrStreamClosed.
func Chunks(chunks ...string) *ChunkSource {
	var (
		mu     sync.Mutex
		i      int
		closed bool
	)
	src := &ChunkSource{}
	src.NextFn = func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil, ndchat.ErrStreamClosed
		}
		if i >= len(chunks) {
			return nil, io.EOF
		}
		c := chunks[i]
		i++
		return []byte(c), nil
	}
	src.CloseFn = func() error {
		mu.Lock()
		defer mu.Unlock()
		closed = true
		return nil
	}
	return src
}
