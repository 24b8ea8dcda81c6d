package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/metrics"
)

// BackendName selects which configured backend serves a call.
type BackendName string

// Backend names.
const (
	BackendPrimary   BackendName = "primary"
	BackendSecondary BackendName = "secondary"
)

// backend is the provider-specific half of a Client.
type backend interface {
	chat(ctx context.Context, messages []Message, format Format) (string, error)
	vision(ctx context.Context, imagePath, prompt string, format Format) (string, error)
	transcribe(ctx context.Context, audioPath string) (string, error)
}

// Client implements Gateway on top of a provider backend, adding rate limiting,
// retries with backoff and a bounded per-attempt timeout.
type Client struct {
	backend     backend
	rateLimiter *rateLimiter
	logger      *slog.Logger
	name        string
	retryOpts   common.RetryOptions
	timeout     time.Duration
}

func newClient(cfg Config, b backend, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:     b,
		name:        cfg.Name,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger.With("backend", cfg.Name),
		timeout:     cfg.Timeout,
		retryOpts: common.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Name returns the backend name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// CompleteText sends a chat completion.
func (c *Client) CompleteText(ctx context.Context, messages []Message, format Format) (string, error) {
	return c.call(ctx, "text", true, func(ctx context.Context) (string, error) {
		return c.backend.chat(ctx, messages, format)
	})
}

// CompleteVision sends an image with a prompt.
func (c *Client) CompleteVision(ctx context.Context, imagePath, prompt string, format Format) (string, error) {
	return c.call(ctx, "vision", true, func(ctx context.Context) (string, error) {
		return c.backend.vision(ctx, imagePath, prompt, format)
	})
}

// TranscribeAudio converts speech to text.
func (c *Client) TranscribeAudio(ctx context.Context, audioPath string) (string, error) {
	return c.call(ctx, "audio", false, func(ctx context.Context) (string, error) {
		return c.backend.transcribe(ctx, audioPath)
	})
}

func (c *Client) call(ctx context.Context, kind string, requireText bool, fn func(context.Context) (string, error)) (string, error) {
	start := time.Now()

	var out string
	err := common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := fn(attemptCtx)
		if err != nil {
			return err
		}
		if requireText && strings.TrimSpace(text) == "" {
			return &common.RetryableError{Err: common.ErrEmptyResponse, Retryable: true}
		}
		out = text
		return nil
	}, c.retryOpts)

	elapsed := time.Since(start)
	metrics.ModelLatency.WithLabelValues(c.name, kind).Observe(elapsed.Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues(c.name, kind, metrics.OutcomeError).Inc()
		c.logger.Error("model call failed", "kind", kind, "elapsed", elapsed, "error", err)
		return "", err
	}

	metrics.ModelCalls.WithLabelValues(c.name, kind, metrics.OutcomeOK).Inc()
	c.logger.Debug("model call completed", "kind", kind, "elapsed", elapsed, "response_size", len(out))
	return out, nil
}

// Router addresses the primary and secondary backends by name.
type Router struct {
	primary   Gateway
	secondary Gateway
}

// NewRouter builds a router. A nil secondary falls back to the primary backend.
func NewRouter(primary, secondary Gateway) *Router {
	if secondary == nil {
		secondary = primary
	}
	return &Router{primary: primary, secondary: secondary}
}

// Backend returns the gateway registered under name. Unknown names resolve to primary.
func (r *Router) Backend(name BackendName) Gateway {
	if name == BackendSecondary {
		return r.secondary
	}
	return r.primary
}
