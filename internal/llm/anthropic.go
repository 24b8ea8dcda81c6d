package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Veraticus/receipt-flow/internal/common"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// anthropicBackend is a text-only backend, usable as the learners' secondary model.
type anthropicBackend struct {
	client anthropic.Client
	cfg    Config
}

func newAnthropicBackend(cfg Config) (*anthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key for %s backend", common.ErrMissingConfig, cfg.Name)
	}
	if cfg.TextModel == "" {
		return nil, fmt.Errorf("%w: text model for %s backend", common.ErrMissingConfig, cfg.Name)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicBackend{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (b *anthropicBackend) chat(ctx context.Context, messages []Message, format Format) (string, error) {
	var system []anthropic.TextBlockParam
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if format == FormatJSON {
		system = append(system, anthropic.TextBlockParam{Text: jsonOnlyInstruction})
	}

	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.TextModel),
		MaxTokens: int64(b.cfg.MaxTokens),
		System:    system,
		Messages:  turns,
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", common.ErrEmptyResponse
}

func (b *anthropicBackend) vision(context.Context, string, string, Format) (string, error) {
	return "", fmt.Errorf("%w: vision on %s backend", common.ErrUnsupported, b.cfg.Name)
}

func (b *anthropicBackend) transcribe(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: transcription on %s backend", common.ErrUnsupported, b.cfg.Name)
}

func classifyAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, err)
	}
	return classifyStatus(0, err)
}
