package remote

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
	"sync/atomic"
	"time"

	"github.com/mcoot/accessgate/internal/dependencies/clock"
	"github.com/mcoot/accessgate/internal/model"
)

// Client talks to the identity service. It is safe for concurrent use; every
// component shares one instance and its underlying transport.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger

	maxAttempts int
	baseDelay   time.Duration

	attempts atomic.Int64
}

// New creates a new identity service client
func New(cfg Config, clk clock.Clock, logger *slog.Logger) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.RequestTimeout}, clk, logger)
}

// NewWithHTTPClient creates a client with a caller-supplied transport (for testing)
func NewWithHTTPClient(cfg Config, httpClient *http.Client, clk clock.Clock, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		userAgent:   cfg.UserAgent,
		httpClient:  httpClient,
		clock:       clk,
		logger:      logger.With(slog.String("component", "remote")),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
	}
}

// Attempts returns the number of HTTP attempts made so far
func (c *Client) Attempts() int64 {
	return c.attempts.Load()
}

// Do performs a request against the identity service. Network failures and 5xx
// responses are retried up to the attempt ceiling, waiting attempt × base delay
// between tries. Any other non-2xx status is returned immediately as a *StatusError.
// When out is non-nil the response body is decoded into it.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * c.baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(backoff):
			}
		}

		respBody, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("failed to parse response: %w", err)
				}
			}
			return nil
		}
		lastErr = err

		if !isTransient(err) || ctx.Err() != nil {
			return err
		}

		c.logger.Warn("transient identity service failure",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	c.attempts.Add(1)

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", model.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return errors.Is(err, model.ErrNetwork)
}

// errorMessage extracts the "error" or "message" field of an error envelope
func errorMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	var msg string
	if len(env.Error) > 0 && json.Unmarshal(env.Error, &msg) == nil && msg != "" {
		return msg
	}
	return env.Message
}
