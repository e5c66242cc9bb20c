package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/woostream/internal/auth"
)

// APIError represents an error from the WOO X API.
type APIError struct {
	StatusCode int
	Code       int    // exchange error code, 0 when the body was not JSON
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("woo api error %d (code=%d): %s", e.StatusCode, e.Code, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type errorBody struct {
	Success *bool  `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// request describes a single REST call.
type request struct {
	method  string
	version string
	path    string
	params  map[string]string
	signed  bool
}

// doRequest performs one HTTP round trip.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, error) {
	values := url.Values{}
	for k, v := range r.params {
		values.Set(k, v)
	}
	encoded := values.Encode() // sorted by key

	fullURL := c.URL(r.version, r.path)
	var body io.Reader
	if r.method == http.MethodPost || r.method == http.MethodPut {
		body = strings.NewReader(encoded)
	} else if encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.creds != nil {
		req.Header.Set(auth.HeaderAPIKey, c.creds.APIKey)
	}
	if r.signed {
		if c.creds == nil {
			return nil, ErrUnauthenticated
		}
		for k, v := range c.creds.SignRequest(r.params) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	// The exchange also reports failures in 200 responses.
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Success != nil && !*eb.Success {
		return nil, newAPIError(resp.StatusCode, data)
	}

	return data, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Code = eb.Code
		if eb.Message != "" {
			apiErr.Message = eb.Message
		}
	}
	return apiErr
}

// doWithRetry performs a request with exponential backoff retry.
// Only GET requests are retried; order placement must not be replayed.
func (c *Client) doWithRetry(ctx context.Context, r request) ([]byte, error) {
	if r.method != http.MethodGet {
		return c.doRequest(ctx, r)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", r.path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, r)
		if err == nil {
			return body, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// call performs a request and decodes the JSON response into result.
func (c *Client) call(ctx context.Context, r request, result any) error {
	body, err := c.doWithRetry(ctx, r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
