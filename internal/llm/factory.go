package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/receipt-flow/internal/common"
)

// NewClient creates a gateway client for the configured provider.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	var (
		b   backend
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		b, err = newOpenAIBackend(cfg)
	case ProviderAnthropic:
		b, err = newAnthropicBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Name, err)
	}

	return newClient(cfg, b, logger), nil
}

// NewRouterFromConfig creates both backends. When the secondary backend has no
// API key the learners share the primary backend.
func NewRouterFromConfig(primary, secondary Config, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	primary.Name = string(BackendPrimary)
	secondary.Name = string(BackendSecondary)

	primaryClient, err := NewClient(primary, logger)
	if err != nil {
		return nil, err
	}

	if secondary.APIKey == "" {
		logger.Warn("secondary model backend not configured, learners will use the primary backend")
		return NewRouter(primaryClient, nil), nil
	}

	secondaryClient, err := NewClient(secondary, logger)
	if err != nil {
		return nil, err
	}
	return NewRouter(primaryClient, secondaryClient), nil
}

// Disabled is a Gateway for hosts that run without model credentials.
// Every call fails with ErrMissingConfig.
type Disabled struct{}

// CompleteText implements Gateway.
func (Disabled) CompleteText(context.Context, []Message, Format) (string, error) {
	return "", fmt.Errorf("%w: no model backend configured", common.ErrMissingConfig)
}

// CompleteVision implements Gateway.
func (Disabled) CompleteVision(context.Context, string, string, Format) (string, error) {
	return "", fmt.Errorf("%w: no model backend configured", common.ErrMissingConfig)
}

// TranscribeAudio implements Gateway.
func (Disabled) TranscribeAudio(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no model backend configured", common.ErrMissingConfig)
}
