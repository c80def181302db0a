// Package llm talks to the generative model used for itineraries and cost estimates.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxRetries  = 2
)

// Generation settings shared by every chat session.
const (
	defaultTemperature = 1.0
	defaultTopP        = 0.95
	defaultTopK        = 64
	defaultMaxTokens   = 8192
)

// ErrEmptyResponse is returned when the model answers without any candidate.
var ErrEmptyResponse = errors.New("model returned no content")

// ClientConfig configures a Client.
type ClientConfig struct {
	// RequestsPerMinute caps outbound calls. Zero disables the limiter.
	RequestsPerMinute int
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int
	// BaseBackoff is the wait before the first retry; it doubles on every attempt.
	BaseBackoff time.Duration
	// CallOptions are applied to every request.
	CallOptions []llms.CallOption
}

// Client wraps an llms.Model with rate limiting and retries.
type Client struct {
	model       llms.Model
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	callOptions []llms.CallOption
	logger      *zap.Logger
}

// NewClient creates a Client around model.
func NewClient(model llms.Model, cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		model:       model,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		callOptions: cfg.CallOptions,
		logger:      logger,
	}
	if c.maxRetries < 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = defaultBaseBackoff
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// NewGeminiModel builds the Google AI backend with the generation settings used across the app.
func NewGeminiModel(ctx context.Context, apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
		googleai.WithDefaultTemperature(defaultTemperature),
		googleai.WithDefaultTopP(defaultTopP),
		googleai.WithDefaultTopK(defaultTopK),
		googleai.WithDefaultMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return m, nil
}

// JSONCallOptions asks the model for an application/json response.
func JSONCallOptions() []llms.CallOption {
	return []llms.CallOption{llms.WithJSONMode()}
}

// Generate sends messages to the model and returns the text of the first choice.
// Transient failures are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("Retrying model call",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.generateOnce(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(ctx, err) {
			return "", err
		}
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) generateOnce(ctx context.Context, messages []llms.MessageContent) (string, error) {
	resp, err := c.model.GenerateContent(ctx, messages, c.callOptions...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// isRetryable treats quota, overload and server errors as transient.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "resource exhausted", "resource_exhausted", "unavailable", "overloaded", "rate limit"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
