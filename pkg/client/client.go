// Package client talks to the inventory ingestion API.
package client

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
	"strings"
	"time"

	"github.com/ChrisHK/label-printer/internal/checksum"
	"github.com/ChrisHK/label-printer/internal/model"
)

const (
	defaultRetries   = 3
	defaultBaseDelay = 500 * time.Millisecond
	maxDelay         = 30 * time.Second
)

// Error is a non-2xx answer from the API.
type Error struct {
	StatusCode int
	Message    string
	Details    any
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the ingestion API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithBaseDelay sets the first retry delay. Later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// New creates a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		retries:    defaultRetries,
		baseDelay:  defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest submits a batch. A checksum is added to the metadata unless one is
// already present. Transport failures and 5xx answers are retried.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	if _, ok := req.Metadata["checksum"]; !ok {
		digest, err := Checksum(req.Items)
		if err != nil {
			return nil, err
		}
		meta := make(map[string]any, len(req.Metadata)+2)
		for k, v := range req.Metadata {
			meta[k] = v
		}
		meta["checksum"] = digest
		if _, ok := meta["total_items"]; !ok {
			meta["total_items"] = len(req.Items)
		}
		req.Metadata = meta
	}

	var out IngestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/data-process/inventory", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncStatus returns the sync state of every known serial number in serials.
func (c *Client) SyncStatus(ctx context.Context, serials []string) (map[string]SyncStatus, error) {
	if serials == nil {
		serials = []string{}
	}
	var out struct {
		Statuses map[string]SyncStatus `json:"statuses"`
	}
	body := map[string]any{"serialnumbers": serials}
	if err := c.do(ctx, http.MethodPost, "/api/v1/data-process/sync-status", body, &out); err != nil {
		return nil, err
	}
	return out.Statuses, nil
}

// Status returns the newest processing log of a batch.
func (c *Client) Status(ctx context.Context, batchID string) (*ProcessingLog, error) {
	var out struct {
		Status *ProcessingLog `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/data-process/status/"+url.PathEscape(batchID), nil, &out); err != nil {
		return nil, err
	}
	return out.Status, nil
}

// Checksum returns the digest the server verifies metadata.checksum against.
func Checksum(items []Item) (string, error) {
	if items == nil {
		return checksum.Calculate(nil)
	}
	raw := make([]model.RawItem, len(items))
	for i, it := range items {
		raw[i] = model.RawItem(it)
	}
	return checksum.Calculate(raw)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}

		retry, err := c.send(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !retry || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.retries+1, lastErr)
}

// send performs one request and reports whether a failure may be retried.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) (bool, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode >= 500, decodeError(resp)
	}
	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error   string `json:"error"`
		Details any    `json:"details"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	return apiErr
}

// backoff returns base * 2^(attempt-1) plus up to 50% jitter, capped.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay <= 0 || delay > maxDelay {
		delay = maxDelay
	}
	if half := int64(delay / 2); half > 0 {
		delay += time.Duration(rand.Int64N(half))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
