package ndchat

import "context"

// Request is the body posted to the assistant endpoint for one turn.
type Request struct {
	Message string `json:"message"`
}

// Transport is a strategy pattern interface for reaching the assistant
// endpoint. Open returns an error when the stream cannot be established
// (refused connection, non-success status). Cancellation flows through ctx.
type Transport interface {
	Open(ctx context.Context, req Request) (ChunkSource, error)
}

// ChunkSource uses a pull-based iterator pattern over the response body.
// Next returns the next chunk in arrival order, or io.EOF once the body is
// exhausted. Chunk boundaries carry no meaning: a chunk may end mid-record or
// mid-character. Close releases the underlying connection and is safe to
// call more than once.
type ChunkSource interface {
	Next() ([]byte, error)
	Close() error
}
