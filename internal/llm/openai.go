package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Veraticus/receipt-flow/internal/common"
)

// openAIBackend talks to any OpenAI-compatible endpoint (GLM, DeepSeek, OpenAI).
type openAIBackend struct {
	client *openai.Client
	cfg    Config
}

// newOpenAIBackend creates a backend for an OpenAI-compatible API.
func newOpenAIBackend(cfg Config) (*openAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key for %s backend", common.ErrMissingConfig, cfg.Name)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &openAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (b *openAIBackend) chat(ctx context.Context, messages []Message, format Format) (string, error) {
	if b.cfg.TextModel == "" {
		return "", fmt.Errorf("%w: text model for %s backend", common.ErrMissingConfig, b.cfg.Name)
	}

	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return b.complete(ctx, b.cfg.TextModel, converted, format)
}

func (b *openAIBackend) vision(ctx context.Context, imagePath, prompt string, format Format) (string, error) {
	if b.cfg.VisionModel == "" {
		return "", fmt.Errorf("%w: vision model for %s backend", common.ErrMissingConfig, b.cfg.Name)
	}

	dataURL, err := imageDataURL(imagePath)
	if err != nil {
		return "", err
	}

	message := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
		},
	}
	return b.complete(ctx, b.cfg.VisionModel, []openai.ChatCompletionMessage{message}, format)
}

func (b *openAIBackend) transcribe(ctx context.Context, audioPath string) (string, error) {
	if b.cfg.AudioModel == "" {
		return "", fmt.Errorf("%w: audio model for %s backend", common.ErrUnsupported, b.cfg.Name)
	}

	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.cfg.AudioModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (b *openAIBackend) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, format Format) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(b.cfg.Temperature),
		MaxTokens:   b.cfg.MaxTokens,
	}
	if format == FormatJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", common.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError marks throttling, server errors and transport failures as retryable.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	return classifyStatus(status, err)
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= http.StatusInternalServerError:
		return &common.RetryableError{Err: err, Retryable: true}
	case status > 0:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		// No HTTP status means the request never completed.
		return &common.RetryableError{Err: err, Retryable: true}
	}
}

// imageDataURL inlines an image file as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image file is empty: %s", path)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
