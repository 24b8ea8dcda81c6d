package llm

import "time"

// Provider identifiers accepted by NewClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config describes one model backend.
type Config struct {
	Name        string        `mapstructure:"-"`
	Provider    string        `mapstructure:"provider" validate:"omitempty,oneof=openai anthropic"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string        `mapstructure:"api_key"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	AudioModel  string        `mapstructure:"audio_model"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RateLimit   int           `mapstructure:"rate_limit" validate:"gte=0"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gte=0"`
}

// DefaultPrimaryConfig returns the vision/text/speech backend defaults.
func DefaultPrimaryConfig() Config {
	return Config{
		Name:        string(BackendPrimary),
		Provider:    ProviderOpenAI,
		BaseURL:     "https://open.bigmodel.cn/api/paas/v4/",
		TextModel:   "GLM-4.5-Air",
		VisionModel: "GLM-4V-Flash",
		AudioModel:  "GLM-ASR",
		Timeout:     120 * time.Second,
		RetryDelay:  time.Second,
		RateLimit:   60,
		MaxRetries:  3,
	}
}

// DefaultSecondaryConfig returns the text-only backend defaults used by the learners.
func DefaultSecondaryConfig() Config {
	return Config{
		Name:       string(BackendSecondary),
		Provider:   ProviderOpenAI,
		BaseURL:    "https://api.deepseek.com/v1",
		TextModel:  "deepseek-chat",
		Timeout:    120 * time.Second,
		RetryDelay: time.Second,
		RateLimit:  60,
		MaxRetries: 3,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}
