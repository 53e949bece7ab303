package ndchat

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrTurnActive indicates Send was called while another turn was running.
	ErrTurnActive = errors.New("turn already in progress")

	// ErrEmptyMessage indicates Send was called with a blank message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrMalformedRecord indicates a stream record could not be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEndpoint indicates the endpoint reported a terminal error event.
	ErrEndpoint = errors.New("endpoint error")

	// ErrTransport indicates the endpoint refused to start a stream.
	ErrTransport = errors.New("transport error")

	// ErrStreamClosed indicates a read from a closed chunk source.
	ErrStreamClosed = errors.New("stream closed")
)
