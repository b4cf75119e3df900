// Package httpclient provides the shared outbound HTTP client. One pooled
// client serves the whole process so connection reuse actually happens.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"restmold/internal/config"
)

// Client wraps net/http with JSON helpers, bounded retries for transient
// failures, and a shared connection pool.
type Client struct {
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
}

// New builds a client from configuration. Zero values fall back to sensible
// defaults so a partially configured client still works.
func New(cfg config.HTTPClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = 500 * time.Millisecond
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries:   cfg.MaxRetries,
		retryBackoff: backoff,
	}
}

var (
	sharedOnce sync.Once
	shared     *Client
)

// Shared returns the process-wide client, building it on first use with
// double-checked construction via sync.Once.
func Shared(cfg config.HTTPClientConfig) *Client {
	sharedOnce.Do(func() {
		shared = New(cfg)
	})
	return shared
}

// Do executes a request with a JSON body and retries transient failures:
// network errors, 429 and 5xx responses. The request body is re-marshalled
// per attempt so retries never send a drained reader.
func (c *Client) Do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}

		resp, err := c.doOnce(ctx, method, url, body)
		if err != nil {
			lastErr = err
			continue
		}
		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("request to %s returned status %d", url, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

// GetJSON performs a GET and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, target)
}

// CloseIdleConnections drops pooled connections. Called on shutdown.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// DecodeResponse decodes a JSON response into target and closes the body.
// Error statuses become errors carrying a bounded slice of the body.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		snippet := body
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, snippet)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
