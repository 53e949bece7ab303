package http

import (
	"io"
	"sync"

	"github.com/fwojciec/ndchat"
)

// Interface compliance check.
var _ ndchat.ChunkSource = (*chunkSource)(nil)

// maxEmptyReads bounds consecutive reads returning no data and no error.
const maxEmptyReads = 100

// chunkSource reads a response body one Read call at a time.
type chunkSource struct {
	body io.ReadCloser
	buf  []byte

	mu     sync.Mutex
	closed bool
}

func newChunkSource(body io.ReadCloser, size int) *chunkSource {
	return &chunkSource{body: body, buf: make([]byte, size)}
}

// Next returns the bytes delivered by the next read of the body. Returned
// slices are owned by the caller.
func (s *chunkSource) Next() ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ndchat.ErrStreamClosed
	}

	for i := 0; i < maxEmptyReads; i++ {
		n, err := s.body.Read(s.buf)
		if n == 0 && err == nil {
			continue
		}
		var chunk []byte
		if n > 0 {
			chunk = make([]byte, n)
			copy(chunk, s.buf[:n])
		}
		return chunk, err
	}
	return nil, io.ErrNoProgress
}

// Close closes the response body. It is safe to call more than once.
func (s *chunkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
