package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/ndchat"
)

// Interface compliance check.
var _ ndchat.Transport = (*Client)(nil)

// Client implements [ndchat.Transport] over HTTP.
type Client struct {
	baseURL    string
	streamPath string
	healthPath string
	chunkSize  int
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamPath sets the path of the streaming chat endpoint.
func WithStreamPath(path string) Option {
	return func(c *Client) { c.streamPath = path }
}

// WithHealthPath sets the path of the health endpoint.
func WithHealthPath(path string) Option {
	return func(c *Client) { c.healthPath = path }
}

// WithChunkSize sets the maximum number of bytes returned by one Next call.
// Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New creates a [Client] for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		streamPath: defaultStreamPath,
		healthPath: defaultHealthPath,
		chunkSize:  defaultChunkSize,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open posts req and returns the response body as a [ndchat.ChunkSource].
// Non-200 responses are reported as errors wrapping [ndchat.ErrTransport].
func (c *Client) Open(ctx context.Context, req ndchat.Request) (ndchat.ChunkSource, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson, text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newChunkSource(resp.Body, c.chunkSize), nil
}

// Health queries the server's health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return Health{}, fmt.Errorf("http: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Health{}, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, parseHTTPError(resp)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("http: decoding health: %w", err)
	}
	return h, nil
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("http: status %d (failed to read body: %v): %w", resp.StatusCode, err, ndchat.ErrTransport)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Detail != "" {
		return fmt.Errorf("http: status %d: %s: %w", resp.StatusCode, apiErr.Detail, ndchat.ErrTransport)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return fmt.Errorf("http: status %d: %s: %w", resp.StatusCode, text, ndchat.ErrTransport)
	}
	return fmt.Errorf("http: status %d: %w", resp.StatusCode, ndchat.ErrTransport)
}
