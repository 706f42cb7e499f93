// Package evolution wraps the Evolution API HTTP gateway used to send and
// receive WhatsApp messages.
//
// It provides methods for sending text and media messages, querying the
// instance connection state, and registering the inbound webhook. Outbound
// calls are retried with exponential backoff.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Constants for Evolution API client configuration
const (
	// DefaultCountryCode is prefixed to phone numbers that lack one.
	DefaultCountryCode = "55"
	// JIDSuffix is the WhatsApp JID suffix for regular users.
	JIDSuffix = "@s.whatsapp.net"
	// DefaultMaxRetries is the number of retries after a failed request.
	DefaultMaxRetries = 3
	// DefaultRetryBase is the backoff unit: retry n waits base * 2^n
	// (2s, 4s, 8s with the default base).
	DefaultRetryBase = time.Second
	// DefaultRequestTimeout bounds a single HTTP attempt.
	DefaultRequestTimeout = 30 * time.Second
)

// Opts holds configuration options for the Evolution API client.
type Opts struct {
	BaseURL    string
	APIKey     string
	Instance   string
	HTTPClient *http.Client
	MaxRetries int
	RetryBase  time.Duration
}

// Option defines a configuration option for the Evolution API client.
type Option func(*Opts)

// WithBaseURL sets the Evolution API base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// WithAPIKey sets the Evolution API key sent in the apikey header.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithInstance sets the Evolution API instance name.
func WithInstance(name string) Option {
	return func(o *Opts) {
		o.Instance = name
	}
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// WithMaxRetries overrides the number of retries after a failed request.
func WithMaxRetries(n int) Option {
	return func(o *Opts) {
		o.MaxRetries = n
	}
}

// WithRetryBase overrides the backoff unit. Tests use a millisecond base to
// keep retry-exhaustion runs fast.
func WithRetryBase(d time.Duration) Option {
	return func(o *Opts) {
		o.RetryBase = d
	}
}

// Client is an Evolution API gateway client bound to one instance.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
}

// NewClient creates a new Evolution API client, applying any provided
// options. BaseURL, APIKey and Instance are required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Evolution NewClient options set", "base_url_set", cfg.BaseURL != "", "api_key_set", cfg.APIKey != "", "instance", cfg.Instance)

	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Instance == "" {
		return nil, fmt.Errorf("evolution client requires base URL, API key and instance name")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	retryBase := cfg.RetryBase
	if retryBase == 0 {
		retryBase = DefaultRetryBase
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		instance:   cfg.Instance,
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryBase:  retryBase,
	}, nil
}

// Instance returns the instance name the client is bound to.
func (c *Client) Instance() string {
	return c.instance
}

// FormatNumber normalizes a phone number or JID to the gateway's canonical
// form: digits only, default country code prefixed if absent, JID suffix
// appended if absent.
func FormatNumber(number string) string {
	if strings.Contains(number, "@") {
		return number
	}
	var b strings.Builder
	for _, r := range number {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if !strings.HasPrefix(cleaned, DefaultCountryCode) {
		cleaned = DefaultCountryCode + cleaned
	}
	return cleaned + JIDSuffix
}

// sendTextRequest is the body for POST /message/sendText/{instance}.
type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// sendMediaRequest is the body for POST /message/sendMedia/{instance}.
type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption"`
}

// webhookSetRequest is the body for POST /webhook/set/{instance}.
type webhookSetRequest struct {
	URL             string   `json:"url"`
	WebhookByEvents bool     `json:"webhook_by_events"`
	Events          []string `json:"events"`
}

// SendText sends a text message to a recipient.
func (c *Client) SendText(ctx context.Context, number, text string) error {
	formatted := FormatNumber(number)
	slog.Debug("Evolution SendText invoked", "to", formatted, "body_length", len(text))

	path := "/message/sendText/" + c.instance
	_, err := c.doWithRetry(ctx, http.MethodPost, path, sendTextRequest{Number: formatted, Text: text})
	if err != nil {
		slog.Error("Evolution SendText failed", "error", err, "to", formatted)
		return fmt.Errorf("failed to send text to %s: %w", formatted, err)
	}
	slog.Info("Evolution SendText succeeded", "to", formatted)
	return nil
}

// SendImage sends an image with an optional caption to a recipient.
func (c *Client) SendImage(ctx context.Context, number, mediaURL, caption string) error {
	formatted := FormatNumber(number)
	slog.Debug("Evolution SendImage invoked", "to", formatted, "caption_length", len(caption))

	path := "/message/sendMedia/" + c.instance
	_, err := c.doWithRetry(ctx, http.MethodPost, path, sendMediaRequest{
		Number:    formatted,
		MediaType: "image",
		Media:     mediaURL,
		Caption:   caption,
	})
	if err != nil {
		slog.Error("Evolution SendImage failed", "error", err, "to", formatted)
		return fmt.Errorf("failed to send image to %s: %w", formatted, err)
	}
	slog.Info("Evolution SendImage succeeded", "to", formatted)
	return nil
}

// ConnectionState queries the connection state of the instance.
func (c *Client) ConnectionState(ctx context.Context) (json.RawMessage, error) {
	slog.Debug("Evolution ConnectionState invoked", "instance", c.instance)

	path := "/instance/connectionState/" + c.instance
	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		slog.Error("Evolution ConnectionState failed", "error", err, "instance", c.instance)
		return nil, fmt.Errorf("failed to get connection state: %w", err)
	}
	return body, nil
}

// ConfigureWebhook registers the webhook URL that will receive message
// upsert events for the instance.
func (c *Client) ConfigureWebhook(ctx context.Context, webhookURL string) error {
	slog.Debug("Evolution ConfigureWebhook invoked", "instance", c.instance, "url", webhookURL)

	path := "/webhook/set/" + c.instance
	_, err := c.doWithRetry(ctx, http.MethodPost, path, webhookSetRequest{
		URL:             webhookURL,
		WebhookByEvents: false,
		Events:          []string{"MESSAGES_UPSERT"},
	})
	if err != nil {
		slog.Error("Evolution ConfigureWebhook failed", "error", err, "url", webhookURL)
		return fmt.Errorf("failed to configure webhook: %w", err)
	}
	slog.Info("Evolution ConfigureWebhook succeeded", "url", webhookURL)
	return nil
}

// doWithRetry performs one request with up to maxRetries retries. Retry n
// waits retryBase * 2^n before the attempt, honoring context cancellation.
func (c *Client) doWithRetry(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBase * time.Duration(1<<attempt)
			slog.Warn("Evolution request retrying", "attempt", attempt, "max_retries", c.maxRetries, "delay", delay, "path", path, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("request canceled during backoff: %w", ctx.Err())
			}
		}

		body, err := c.do(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}

// do performs a single HTTP request against the gateway.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
