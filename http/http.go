// Package http implements [ndchat.Transport] for the chat server's HTTP API.
//
// A turn is a POST of {"message": ...} to the stream path. The server answers
// with a chunked body of newline-delimited JSON events which is handed to the
// session unparsed, one read at a time.
package http

const (
	defaultStreamPath = "/chat/stream"
	defaultHealthPath = "/health"
	defaultChunkSize  = 4096
)

// apiErrorResponse is the JSON body returned on non-200 responses.
type apiErrorResponse struct {
	Detail string `json:"detail"`
}

// Health is the server's self-reported status.
type Health struct {
	Status       string            `json:"status"`
	Message      string            `json:"message"`
	OpenAIClient string            `json:"openai_client"`
	MCPServerURL string            `json:"mcp_server_url"`
	Environment  map[string]string `json:"environment"`
}

// OK reports whether the server considers itself healthy.
func (h Health) OK() bool { return h.Status == "ok" }
