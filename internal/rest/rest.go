// Package rest is a thin typed wrapper over net/http for JSON APIs.
// Retries and credential refresh are deliberately out of scope: callers
// that need them wrap the client.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"satchel/internal/logging"
)

var logger = logging.For("rest")

const defaultTimeout = 30 * time.Second

// Client issues JSON requests against a single API base URL.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: baseURL,
		hc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response, with the raw body kept for diagnosis.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Body)
}

// Do issues a request and decodes the JSON response body into T. A status
// of 400 or above yields an *APIError. A body of nil sends no request body.
func Do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// Get is shorthand for Do with GET and no body.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do[T](ctx, c, http.MethodGet, path, nil)
}

// Post is shorthand for Do with POST.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, http.MethodPost, path, body)
}

// Delete is shorthand for Do with DELETE and no body.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do[T](ctx, c, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Body: raw}
	}
	return raw, nil
}
