// Package webhook implements the HTTP client for the remote assistant
// endpoint. The endpoint is opaque: one POST per user turn, a reply
// string back. Retry policy belongs to the caller.
package webhook

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

	"github.com/rs/zerolog"
)

// Error kinds surfaced to the conversation controller.
var (
	// ErrTimeout indicates the request exceeded the configured deadline.
	ErrTimeout = errors.New("webhook request timed out")
	// ErrUnavailable covers every other failure: transport errors,
	// non-2xx statuses, malformed bodies and missing replies.
	ErrUnavailable = errors.New("webhook unavailable")
)

// ClientConfig configures the webhook client
type ClientConfig struct {
	URL     string        // Webhook endpoint
	Timeout time.Duration // Per-request deadline
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		URL:     "http://localhost:5678/webhook/javispro212",
		Timeout: 30 * time.Second,
	}
}

// Client sends user turns to the configured webhook.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new webhook client
func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "webhook-client").Logger(),
	}
}

type sendRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type sendResponse struct {
	Reply string `json:"reply"`
}

// Send posts one message and returns the reply text verbatim.
// A missing or empty reply field is a failure; the client never retries.
func (c *Client) Send(ctx context.Context, message, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(sendRequest{Message: message, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn().Dur("timeout", c.config.Timeout).Msg("Webhook request timed out")
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.config.Timeout)
		}
		c.logger.Warn().Err(err).Msg("Webhook request failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Webhook returned error status")
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.logger.Warn().Err(err).Msg("Webhook returned malformed JSON")
		return "", fmt.Errorf("%w: malformed response", ErrUnavailable)
	}

	if strings.TrimSpace(parsed.Reply) == "" {
		c.logger.Warn().Msg("Webhook response missing reply field")
		return "", fmt.Errorf("%w: missing reply", ErrUnavailable)
	}

	c.logger.Debug().Int("replyLen", len(parsed.Reply)).Msg("Webhook reply received")
	return parsed.Reply, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.config.URL
}
