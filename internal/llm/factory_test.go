package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/common"
)

func TestNewClient(t *testing.T) {
	t.Run("openai compatible", func(t *testing.T) {
		cfg := DefaultPrimaryConfig()
		cfg.APIKey = "key"
		c, err := NewClient(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "primary", c.Name())
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := Config{Name: "secondary", Provider: ProviderAnthropic, APIKey: "key", TextModel: "claude-3-5-haiku-latest"}
		_, err := NewClient(cfg, nil)
		require.NoError(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewClient(DefaultPrimaryConfig(), nil)
		assert.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(Config{Provider: "bard", APIKey: "key"}, nil)
		assert.ErrorContains(t, err, "unsupported model provider")
	})
}

func TestNewRouterFromConfig(t *testing.T) {
	primary := DefaultPrimaryConfig()
	primary.APIKey = "key"

	r, err := NewRouterFromConfig(primary, DefaultSecondaryConfig(), nil)
	require.NoError(t, err)
	assert.Same(t, r.Backend(BackendPrimary), r.Backend(BackendSecondary))

	secondary := DefaultSecondaryConfig()
	secondary.APIKey = "other"
	r, err = NewRouterFromConfig(primary, secondary, nil)
	require.NoError(t, err)
	assert.NotSame(t, r.Backend(BackendPrimary), r.Backend(BackendSecondary))
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	var g Gateway = Disabled{}

	_, err := g.CompleteText(ctx, UserMessage("hi"), FormatText)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	_, err = g.CompleteVision(ctx, "a.jpg", "read", FormatJSON)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
	_, err = g.TranscribeAudio(ctx, "a.wav")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
