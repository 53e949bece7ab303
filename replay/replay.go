// Package replay serves recorded NDJSON streams as an [ndchat.Transport] and
// records live streams for later replay.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/ndchat"
	"golang.org/x/time/rate"
)

const defaultChunkSize = 64

// Interface compliance checks.
var (
	_ ndchat.Transport   = (*Transport)(nil)
	_ ndchat.ChunkSource = (*chunkSource)(nil)
	_ ndchat.Transport   = (*recorder)(nil)
	_ ndchat.ChunkSource = (*teeSource)(nil)
)

// Transport replays a recording of one or more turns. A turn ends after its
// end or error record. Successive Opens serve the turns in order, whatever
// the request, starting over after the last one.
type Transport struct {
	turns     [][]byte
	next      atomic.Int64
	chunkSize int
	limit     rate.Limit
}

// Option configures a [Transport].
type Option func(*Transport)

// WithChunkSize sets the number of bytes served per chunk. Chunk boundaries
// ignore line and character boundaries. Values <= 0 are ignored.
func WithChunkSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.chunkSize = n
		}
	}
}

// WithRate paces chunks to at most limit per second. Values <= 0 are
// ignored.
func WithRate(limit rate.Limit) Option {
	return func(t *Transport) {
		if limit > 0 {
			t.limit = limit
		}
	}
}

// New reads the recording from r.
func New(r io.Reader, opts ...Option) (*Transport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("replay: read recording: %w", err)
	}
	t := &Transport{
		turns:     splitTurns(data),
		chunkSize: defaultChunkSize,
		limit:     rate.Inf,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Turns returns the number of turns in the recording.
func (t *Transport) Turns() int { return len(t.turns) }

// Open starts serving the next turn of the recording.
func (t *Transport) Open(ctx context.Context, _ ndchat.Request) (ndchat.ChunkSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	var data []byte
	if len(t.turns) > 0 {
		data = t.turns[(t.next.Add(1)-1)%int64(len(t.turns))]
	}
	return &chunkSource{
		ctx:     ctx,
		data:    data,
		size:    t.chunkSize,
		limiter: rate.NewLimiter(t.limit, 1),
	}, nil
}

// splitTurns cuts a recording after every end or error record. Text after
// the last of them is a final, unterminated turn unless it is blank.
func splitTurns(data []byte) [][]byte {
	var (
		turns [][]byte
		start int
	)
	for pos := 0; pos < len(data); {
		i := bytes.IndexByte(data[pos:], '\n')
		end := len(data)
		if i >= 0 {
			end = pos + i + 1
		}
		if terminal(string(data[pos:end])) {
			turns = append(turns, data[start:end])
			start = end
		}
		pos = end
	}
	if len(bytes.TrimSpace(data[start:])) > 0 {
		turns = append(turns, data[start:])
	}
	return turns
}

// terminal reports whether line is a record that ends a turn.
func terminal(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	evt, err := ndchat.DecodeEvent([]byte(line))
	if err != nil {
		return false
	}
	switch evt.(type) {
	case ndchat.EventEnd, ndchat.EventError:
		return true
	}
	return false
}

type chunkSource struct {
	ctx     context.Context
	limiter *rate.Limiter

	mu     sync.Mutex
	data   []byte
	size   int
	closed bool
}

func (s *chunkSource) Next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ndchat.ErrStreamClosed
	}
	if len(s.data) == 0 {
		return nil, io.EOF
	}
	if err := s.limiter.Wait(s.ctx); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	n := min(s.size, len(s.data))
	chunk := make([]byte, n)
	copy(chunk, s.data[:n])
	s.data = s.data[n:]
	return chunk, nil
}

func (s *chunkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Record returns middleware that copies every chunk read from the wrapped
// transport to w. A turn closed before its end or error record is
// terminated with an end record so the next turn replays separately.
// Writes are serialized; a failing w never fails the turn.
func Record(w io.Writer) func(ndchat.Transport) ndchat.Transport {
	mu := &sync.Mutex{}
	return func(next ndchat.Transport) ndchat.Transport {
		return &recorder{next: next, w: w, mu: mu}
	}
}

type recorder struct {
	next ndchat.Transport
	w    io.Writer
	mu   *sync.Mutex
}

func (r *recorder) Open(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
	src, err := r.next.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return &teeSource{src: src, w: r.w, mu: r.mu}, nil
}

type teeSource struct {
	src ndchat.ChunkSource
	w   io.Writer
	mu  *sync.Mutex

	framer     ndchat.LineFramer
	terminated bool
	closed     bool
}

func (s *teeSource) Next() ([]byte, error) {
	chunk, err := s.src.Next()
	if len(chunk) > 0 {
		s.mu.Lock()
		_, _ = s.w.Write(chunk)
		s.mu.Unlock()
		for _, line := range s.framer.Feed(string(chunk)) {
			if terminal(line) {
				s.terminated = true
			}
		}
	}
	return chunk, err
}

func (s *teeSource) Close() error {
	if !s.closed {
		s.closed = true
		s.finish()
	}
	return s.src.Close()
}

// finish writes what the recording needs to keep this turn separate from
// the next: a newline after an unterminated last record and, when the
// stream stopped early, an end record.
func (s *teeSource) finish() {
	rest := s.framer.Buffered()
	if terminal(rest) {
		s.terminated = true
	}
	var tail []byte
	if rest != "" {
		tail = append(tail, '\n')
	}
	if !s.terminated {
		end, _ := ndchat.EncodeEvent(ndchat.EventEnd{})
		tail = append(tail, end...)
	}
	if len(tail) == 0 {
		return
	}
	s.mu.Lock()
	_, _ = s.w.Write(tail)
	s.mu.Unlock()
}
