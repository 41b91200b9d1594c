package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 4 << 20
)

// Caller performs the JSON-over-HTTP exchange shared by every adapter: one
// POST, a bounded body read, and error normalization into *UpstreamError.
type Caller struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewCaller creates a Caller. A nil httpClient uses a fresh http.Client, a
// non-positive timeout uses DefaultTimeout, and a nil logger discards logs.
func NewCaller(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Caller {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// PostJSON marshals body, POSTs it to endpoint with the given headers, and
// returns the parsed JSON response. Any transport failure, timeout, non-2xx
// status, or non-JSON body is reported as *UpstreamError for name.
func (c *Caller) PostJSON(ctx context.Context, name Name, endpoint string, headers map[string]string, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, NewUpstreamError(name, 0, fmt.Sprintf("marshal request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, NewUpstreamError(name, 0, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	startTime := time.Now()
	c.logger.Debug("sending upstream request",
		zap.String("provider", string(name)),
		zap.String("url", redactURL(endpoint)),
		zap.Int("body_size", len(payload)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return gjson.Result{}, NewUpstreamError(name, 0, fmt.Sprintf("request timed out after %s", c.timeout))
		}
		return gjson.Result{}, NewUpstreamError(name, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, NewUpstreamError(name, resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	c.logger.Debug("received upstream response",
		zap.String("provider", string(name)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(startTime)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, NewUpstreamError(name, resp.StatusCode, errorMessage(raw, resp.StatusCode))
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, NewUpstreamError(name, resp.StatusCode, "response is not valid JSON")
	}

	return gjson.ParseBytes(raw), nil
}

// Text extracts the string at path from a provider response.
func Text(name Name, result gjson.Result, path string) (string, error) {
	value := result.Get(path)
	if !value.Exists() || value.Type != gjson.String {
		return "", NewUpstreamError(name, 0, fmt.Sprintf("unexpected response shape: missing %s", path))
	}
	return value.String(), nil
}

// errorMessage pulls a human readable message out of an error body. Vendors
// disagree on the shape, so the common locations are tried in order.
func errorMessage(raw []byte, status int) string {
	if gjson.ValidBytes(raw) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			if v := gjson.GetBytes(raw, path); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
				return strings.TrimSpace(v.String())
			}
		}
	}
	return fmt.Sprintf("provider returned status %d", status)
}

// redactURL drops the query string, which may carry an API key.
func redactURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
