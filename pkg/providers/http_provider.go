package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// userAgent is sent on every upstream request.
const userAgent = "Aratta/" + "0.1.0"

// HTTPClient is the shared transport base embedded by every adapter. It
// owns the pooled HTTP client, applies the per-provider timeout, and
// classifies upstream failures into the canonical error types.
//
// Adapters do not retry; a single attempt either succeeds or yields a
// classified error for the router to act on.
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient builds the transport base for one provider.
func NewHTTPClient(config Config) *HTTPClient {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Config returns the provider configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

// Name returns the provider's gateway name.
func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Close releases pooled connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	slog.Info("provider closed", "provider", c.config.Name)
	return nil
}

// Do performs one HTTP request against the upstream. Non-2xx responses are
// classified: 401/403 → AuthenticationError, 429 → RateLimitError,
// 404 → ModelNotFoundError, everything else → ProviderError. Transport
// failures become ProviderError with status 0.
//
// On success the caller owns resp.Body.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &ProviderError{Provider: c.config.Name, Message: "failed to build request", Cause: err}
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	slog.Debug("sending request to provider",
		"provider", c.config.Name,
		"method", method,
		"path", path,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ProviderError{
				Provider: c.config.Name,
				Message:  fmt.Sprintf("request timeout after %s", c.config.Timeout),
				Cause:    ctx.Err(),
			}
		}
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, &ProviderError{
				Provider: c.config.Name,
				Message:  fmt.Sprintf("request timeout after %s", c.config.Timeout),
				Cause:    err,
			}
		}
		return nil, &ProviderError{Provider: c.config.Name, Message: "connection error: " + err.Error(), Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	return nil, c.classifyStatus(resp, errorBody)
}

// classifyStatus maps a non-2xx upstream response to a canonical error.
func (c *HTTPClient) classifyStatus(resp *http.Response, body []byte) error {
	message := extractUpstreamMessage(body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Provider: c.config.Name, Message: message}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   c.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    message,
		}
	case http.StatusNotFound:
		return &ModelNotFoundError{Provider: c.config.Name, Model: message}
	default:
		return &ProviderError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}
}

// DoJSON performs a request and decodes the JSON response into out.
func (c *HTTPClient) DoJSON(ctx context.Context, method, path string, reqBody, out any, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, path, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: c.config.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if out != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, out); err != nil {
			return &ParseError{
				Provider:    c.config.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Probe performs one timed GET for health checks.
func (c *HTTPClient) Probe(ctx context.Context, path string, headers map[string]string) HealthStatus {
	start := time.Now()
	resp, err := c.Do(ctx, http.MethodGet, path, nil, headers)
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return HealthStatus{Status: Unhealthy, Provider: c.config.Name, Error: err.Error()}
	}
	resp.Body.Close()
	return HealthStatus{Status: Healthy, Provider: c.config.Name, LatencyMS: latency}
}

// extractUpstreamMessage pulls a human-readable message from an upstream
// error body without leaking the raw payload when it isn't JSON.
func extractUpstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500]
	}
	return trimmed
}

// parseRetryAfter parses the Retry-After header value.
// Supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
