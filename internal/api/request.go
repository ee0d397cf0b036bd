package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rickgao/notebook-client/internal/cache"
)

// APIError represents an error from the notebook backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notebook api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doRequest performs an HTTP request and returns the unwrapped reply body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.creds.Apply(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, resp.StatusCode),
			Body:       body,
		}
	}

	return unwrap(body)
}

// doWithRetry performs a request with exponential backoff retry.
// Non-idempotent methods are sent once.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	retries := c.maxRetries
	if method == http.MethodPost {
		retries = 0
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"method", method,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query, payload)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	if retries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries, served from the cache when possible.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	key := cacheKey(path, query)

	if c.cacheTTL > 0 {
		cached, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			if err := decode(cached, result); err == nil {
				return nil
			}
			c.logger.Debug("discarding undecodable cache entry", "key", key)
		case !errors.Is(err, cache.ErrMiss):
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	if err := decode(body, result); err != nil {
		return err
	}

	if c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return nil
}

// send performs a write and invalidates the cached reads it affects.
// result may be nil.
func (c *Client) send(ctx context.Context, method, path string, in, result any, invalidate ...string) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = sonic.ConfigStd.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	body, err := c.doWithRetry(ctx, method, path, nil, payload)
	if err != nil {
		return err
	}

	if c.cacheTTL > 0 && len(invalidate) > 0 {
		if err := c.cache.Delete(ctx, invalidate...); err != nil {
			c.logger.Warn("cache invalidation failed", "keys", invalidate, "error", err)
		}
	}

	if result == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return decode(body, result)
}

func decode(body []byte, result any) error {
	if err := sonic.ConfigStd.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return cache.Key("api", path)
	}
	return cache.Key("api", path+"?"+query.Encode())
}

// envelope is the {"statusCode", "body"} wrapper some endpoints reply with.
type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// unwrap strips an envelope if present. A string body is decoded once more.
func unwrap(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body, nil
	}

	var env envelope
	if err := sonic.ConfigStd.Unmarshal(trimmed, &env); err != nil || env.StatusCode == nil {
		return body, nil
	}

	inner := unquote(env.Body)
	if *env.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: *env.StatusCode,
			Message:    errorMessage(inner, *env.StatusCode),
			Body:       inner,
		}
	}
	return inner, nil
}

// unquote returns the contents of a JSON string, or raw unchanged.
func unquote(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := sonic.ConfigStd.Unmarshal(raw, &s); err != nil {
		return raw
	}
	return []byte(s)
}

// errorMessage extracts {"error": "..."} or {"detail": "..."} from body,
// falling back to the status text.
func errorMessage(body []byte, status int) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := sonic.ConfigStd.Unmarshal(unquote(body), &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	return http.StatusText(status)
}
