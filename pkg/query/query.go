// Package query is the client for the backend query service, which matches a
// natural-language request to a connector function and executes it.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single call to the query service.
	DefaultTimeout = 60 * time.Second

	// APIKeyHeader carries the dispatcher credential.
	APIKeyHeader = "X-API-Key"

	maxResponseBytes = 8 << 20
)

// MatchedFunction describes the connector operation that served a query.
type MatchedFunction struct {
	Connector string `json:"connector"`
	Operation string `json:"operation"`
	Method    string `json:"method"`
	Path      string `json:"path"`
}

// Result is the normalized outcome of a dispatch. Failures are carried in
// Error with Success false; Dispatch never returns a Go error.
type Result struct {
	Success         bool             `json:"success"`
	MatchedFunction *MatchedFunction `json:"matched_function,omitempty"`
	Data            json.RawMessage  `json:"data,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// Dispatcher sends a data request to the query service.
type Dispatcher interface {
	Dispatch(ctx context.Context, query string, apiKey string) Result
}

// DispatchError describes a failed call to the query service.
type DispatchError struct {
	StatusCode int
	Message    string
}

func (e *DispatchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("query service returned %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Client talks to the query service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a query service client rooted at baseURL. A nil
// httpClient uses a fresh http.Client, a non-positive timeout uses
// DefaultTimeout, and a nil logger discards logs.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// Dispatch posts query to /query. Transport failures, timeouts, non-2xx
// statuses and undecodable bodies all yield Success false.
func (c *Client) Dispatch(ctx context.Context, query string, apiKey string) Result {
	startTime := time.Now()

	result, err := c.dispatch(ctx, query, apiKey)
	if err != nil {
		c.logger.Warn("query dispatch failed",
			zap.String("query", query),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return Result{Success: false, Error: err.Error()}
	}

	fields := []zap.Field{
		zap.String("query", query),
		zap.Bool("success", result.Success),
		zap.Duration("duration", time.Since(startTime)),
	}
	if result.MatchedFunction != nil {
		fields = append(fields,
			zap.String("connector", result.MatchedFunction.Connector),
			zap.String("operation", result.MatchedFunction.Operation),
		)
	}
	c.logger.Info("query dispatched", fields...)

	return result
}

func (c *Client) dispatch(ctx context.Context, query string, apiKey string) (Result, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, apiKey)

	raw, status, err := c.do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &DispatchError{Message: fmt.Sprintf("query service timed out after %s", c.timeout)}
		}
		return Result{}, err
	}
	if status < 200 || status >= 300 {
		return Result{}, &DispatchError{StatusCode: status, Message: errorMessage(raw)}
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, &DispatchError{StatusCode: status, Message: "invalid response from query service"}
	}
	if string(result.Data) == "null" {
		result.Data = nil
	}
	if !result.Success && result.Error == "" {
		result.Error = "query service reported failure without an error message"
	}
	return result, nil
}

// TestKey fetches the demo credential the chat surface passes to Dispatch.
func (c *Client) TestKey(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/test-key", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	raw, status, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("fetch test key: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("fetch test key: %w", &DispatchError{StatusCode: status, Message: errorMessage(raw)})
	}

	key := gjson.GetBytes(raw, "api_key")
	if key.Type != gjson.String || key.String() == "" {
		return "", errors.New("fetch test key: response has no api_key")
	}
	return key.String(), nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &DispatchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &DispatchError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}
	return raw, resp.StatusCode, nil
}

func errorMessage(raw []byte) string {
	for _, path := range []string{"detail", "error", "message"} {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
		return s
	}
	return "request failed"
}
