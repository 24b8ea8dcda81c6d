package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/common"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range append(append([]string{}, primaryKeyEnv...), secondaryKeyEnv...) {
		t.Setenv(name, "")
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/receipts/receipts.db", cfg.Database.Path)
	assert.Equal(t, "openai", cfg.Models.Primary.Provider)
	assert.Equal(t, "GLM-4V-Flash", cfg.Models.Primary.VisionModel)
	assert.Equal(t, 120*time.Second, cfg.Models.Primary.Timeout)
	assert.Equal(t, "deepseek-chat", cfg.Models.Secondary.TextModel)
	assert.Equal(t, 1000, cfg.Sessions.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Sessions.MaxAge)
	assert.Equal(t, 72*time.Hour, cfg.Sessions.HardTTL)
	assert.Equal(t, "@every 1h", cfg.Sessions.ReapSchedule)
	assert.Equal(t, 50, cfg.Learning.MaxFeedbacks)
	assert.Equal(t, 10, cfg.Learning.BatchSize)
	assert.Equal(t, 100, cfg.Profile.MaxDocuments)
	assert.Empty(t, cfg.Metrics.Addr)

	assert.ErrorIs(t, cfg.RequireAPIKey(), common.ErrMissingConfig)
}

func TestLoadFile(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/receipts.db
models:
  primary:
    api_key: zhipu-key
  secondary:
    provider: anthropic
    base_url: ""
    text_model: claude-sonnet
    timeout: 30s
sessions:
  max_age: 2h
  hard_ttl: 6h
learning:
  batch_size: 5
metrics:
  addr: 127.0.0.1:9090
`), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/receipts.db", cfg.Database.Path)
	assert.Equal(t, "zhipu-key", cfg.Models.Primary.APIKey)
	assert.Equal(t, "anthropic", cfg.Models.Secondary.Provider)
	assert.Equal(t, 30*time.Second, cfg.Models.Secondary.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.MaxAge)
	assert.Equal(t, 5, cfg.Learning.BatchSize)
	assert.Equal(t, 50, cfg.Learning.MaxFeedbacks)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Addr)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoadEnvironment(t *testing.T) {
	clearKeyEnv(t)

	t.Run("prefixed keys override defaults", func(t *testing.T) {
		t.Setenv("RECEIPTS_LEARNING_MAX_FEEDBACKS", "20")
		t.Setenv("RECEIPTS_MODELS_PRIMARY_API_KEY", "from-config-key")

		cfg, err := Load(newViper())
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.Learning.MaxFeedbacks)
		assert.Equal(t, "from-config-key", cfg.Models.Primary.APIKey)
	})

	t.Run("vendor key fallbacks", func(t *testing.T) {
		t.Setenv("ZHIPU_API_KEY", "zhipu")
		t.Setenv("DEEPSEEK_API_KEY", "deepseek")

		cfg, err := Load(newViper())
		require.NoError(t, err)
		assert.Equal(t, "zhipu", cfg.Models.Primary.APIKey)
		assert.Equal(t, "deepseek", cfg.Models.Secondary.APIKey)
	})

	t.Run("dedicated key wins over vendor key", func(t *testing.T) {
		t.Setenv("RECEIPTS_SECONDARY_API_KEY", "dedicated")
		t.Setenv("DEEPSEEK_API_KEY", "deepseek")

		cfg, err := Load(newViper())
		require.NoError(t, err)
		assert.Equal(t, "dedicated", cfg.Models.Secondary.APIKey)
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearKeyEnv(t)

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "unknown provider", key: "models.primary.provider", value: "bard"},
		{name: "zero capacity", key: "sessions.capacity", value: 0},
		{name: "hard ttl below max age", key: "sessions.hard_ttl", value: time.Hour},
		{name: "empty schedule", key: "sessions.reap_schedule", value: ""},
		{name: "bad log format", key: "logging.format", value: "xml"},
		{name: "bad metrics address", key: "metrics.addr", value: "not an address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("RECEIPTS_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", "/home/tester"},
		{"~/receipts.db", "/home/tester/receipts.db"},
		{"$RECEIPTS_DIR/receipts.db", "/data/receipts.db"},
		{"/abs/path.db", "/abs/path.db"},
		{"~other/receipts.db", "~other/receipts.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.config/receipts", dir)
}
