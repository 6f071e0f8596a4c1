// Package llm is a small chat-completions client for OpenAI and Azure
// OpenAI deployments.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wissalbenjira/SDG-KG/pkg/resilience"
)

// API flavours.
const (
	APITypeOpenAI = "openai"
	APITypeAzure  = "azure"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

var (
	// ErrNotConfigured is returned when the key or model is missing.
	ErrNotConfigured = errors.New("llm: not configured")
	// ErrEmptyResponse is returned when the completion has no content.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Config addresses a chat-completions endpoint. For Azure, Model is the
// deployment name.
type Config struct {
	APIType    string
	APIKey     string
	APIVersion string
	APIBase    string
	Model      string
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build messages.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Client sends chat completions at temperature 0.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (60s timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLimiter replaces the default limiter (one request per second, burst 3).
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithBreaker replaces the default breaker.
func WithBreaker(b *resilience.Breaker) Option { return func(c *Client) { c.breaker = b } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a client for cfg.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether the client has what it needs to call out.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.Model != "" && (!c.azure() || c.cfg.APIBase != "")
}

func (c *Client) azure() bool {
	return strings.EqualFold(c.cfg.APIType, APITypeAzure)
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.APIBase, "/")
	if c.azure() {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIVersion))
	}
	if base == "" {
		base = defaultOpenAIBase
	}
	return base + "/chat/completions"
}

type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends msgs and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: rate limit: %w", err)
	}
	start := time.Now()
	out, err := resilience.Do(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return c.complete(ctx, msgs)
	})
	c.logger.Debug("llm: completion", "api_type", c.cfg.APIType, "model", c.cfg.Model, "duration", time.Since(start), "err", err)
	return out, err
}

func (c *Client) complete(ctx context.Context, msgs []Message) (string, error) {
	payload := chatRequest{Messages: msgs}
	if !c.azure() {
		payload.Model = c.cfg.Model
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure() {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}

// Ping sends a one-word system prompt to check credentials and endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, []Message{System("ping")})
	return err
}
