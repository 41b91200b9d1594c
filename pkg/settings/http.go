package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource reads settings from the configuration service's GET /config.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPSource creates an HTTPSource rooted at baseURL.
func NewHTTPSource(baseURL string, httpClient *http.Client, timeout time.Duration) *HTTPSource {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) (Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/config", nil)
	if err != nil {
		return Settings{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Settings{}, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return Settings{}, fmt.Errorf("config service returned %d: %s", resp.StatusCode, string(body))
	}

	var out Settings
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	return out, nil
}
