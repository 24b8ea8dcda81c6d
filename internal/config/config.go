package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/learning"
	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. RECEIPTS_DATABASE_PATH.
const EnvPrefix = "RECEIPTS"

// DefaultDatabasePath is where the SQLite database lives unless configured.
const DefaultDatabasePath = "~/.local/share/receipts/receipts.db"

// Config is the complete application configuration.
type Config struct {
	Models   ModelsConfig   `mapstructure:"models"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Learning LearningConfig `mapstructure:"learning"`
	Profile  ProfileConfig  `mapstructure:"profile"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ModelsConfig holds both model backends.
type ModelsConfig struct {
	Primary   llm.Config `mapstructure:"primary"`
	Secondary llm.Config `mapstructure:"secondary"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	ReapSchedule string        `mapstructure:"reap_schedule" validate:"required"`
	MaxAge       time.Duration `mapstructure:"max_age" validate:"gt=0"`
	HardTTL      time.Duration `mapstructure:"hard_ttl" validate:"gtefield=MaxAge"`
	Capacity     int           `mapstructure:"capacity" validate:"gt=0"`
}

// LearningConfig limits feedback learning runs.
type LearningConfig struct {
	MaxFeedbacks int `mapstructure:"max_feedbacks" validate:"gt=0"`
	BatchSize    int `mapstructure:"batch_size" validate:"gt=0"`
}

// ProfileConfig limits profile optimization runs.
type ProfileConfig struct {
	MaxDocuments int `mapstructure:"max_documents" validate:"gt=0"`
	BatchSize    int `mapstructure:"batch_size" validate:"gt=0"`
}

// MetricsConfig enables the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// API key fallbacks, checked in order when the config leaves a key empty.
var (
	primaryKeyEnv   = []string{EnvPrefix + "_PRIMARY_API_KEY", "ZHIPU_API_KEY"}
	secondaryKeyEnv = []string{EnvPrefix + "_SECONDARY_API_KEY", "DEEPSEEK_API_KEY", "ANTHROPIC_API_KEY"}
)

// SetDefaults registers every default on v and enables environment overrides.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.addr", "")

	setModelDefaults(v, "models.primary", llm.DefaultPrimaryConfig())
	setModelDefaults(v, "models.secondary", llm.DefaultSecondaryConfig())

	v.SetDefault("sessions.capacity", session.DefaultCapacity)
	v.SetDefault("sessions.max_age", session.DefaultMaxAge)
	v.SetDefault("sessions.hard_ttl", session.DefaultHardTTL)
	v.SetDefault("sessions.reap_schedule", "@every 1h")

	v.SetDefault("learning.max_feedbacks", learning.DefaultMaxFeedbacks)
	v.SetDefault("learning.batch_size", learning.DefaultBatchSize)
	v.SetDefault("profile.max_documents", learning.DefaultMaxDocuments)
	v.SetDefault("profile.batch_size", learning.DefaultDocumentBatch)
}

func setModelDefaults(v *viper.Viper, prefix string, cfg llm.Config) {
	v.SetDefault(prefix+".provider", cfg.Provider)
	v.SetDefault(prefix+".base_url", cfg.BaseURL)
	v.SetDefault(prefix+".api_key", "")
	v.SetDefault(prefix+".text_model", cfg.TextModel)
	v.SetDefault(prefix+".vision_model", cfg.VisionModel)
	v.SetDefault(prefix+".audio_model", cfg.AudioModel)
	v.SetDefault(prefix+".timeout", cfg.Timeout)
	v.SetDefault(prefix+".retry_delay", cfg.RetryDelay)
	v.SetDefault(prefix+".rate_limit", cfg.RateLimit)
	v.SetDefault(prefix+".max_retries", cfg.MaxRetries)
}

// Load decodes and validates the configuration held by v.
// SetDefaults must have been called on v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Models.Primary.APIKey = firstNonEmpty(cfg.Models.Primary.APIKey, primaryKeyEnv)
	cfg.Models.Secondary.APIKey = firstNonEmpty(cfg.Models.Secondary.APIKey, secondaryKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %q", common.ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return nil
}

// RequireAPIKey reports ErrMissingConfig when the primary backend has no key.
func (c *Config) RequireAPIKey() error {
	if c.Models.Primary.APIKey == "" {
		return common.NewUserError(
			"set models.primary.api_key or one of "+strings.Join(primaryKeyEnv, ", "),
			fmt.Errorf("%w: primary model API key", common.ErrMissingConfig))
	}
	return nil
}

func firstNonEmpty(value string, envs []string) string {
	if value != "" {
		return value
	}
	for _, name := range envs {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
