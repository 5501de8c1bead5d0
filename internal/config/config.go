// Package config holds the configuration tree read by viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/interview-assistant/internal/assistant"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/secrets"
	"github.com/spigell/interview-assistant/internal/timer"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"

	// GeminiKeyEnv is consulted when no key or key file is configured.
	GeminiKeyEnv = "GEMINI_API_KEY"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Timer   TimerConfig   `mapstructure:"timer"`
	AI      AIConfig      `mapstructure:"ai"`
	Review  ReviewConfig  `mapstructure:"review"`
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Key     string      `mapstructure:"key"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ScoringConfig struct {
	CapToMax bool `mapstructure:"cap-to-max"`
}

type TimerConfig struct {
	Step time.Duration `mapstructure:"step"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type ReviewConfig struct {
	Listen string `mapstructure:"listen"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.path", "interview-store.json")
	v.SetDefault("storage.key", roster.DefaultKey)
	v.SetDefault("storage.redis.address", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("scoring.cap-to-max", true)
	v.SetDefault("timer.step", timer.DefaultStep)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", assistant.ProviderGemini)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.max-retries", 2)
	v.SetDefault("review.listen", ":8080")
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case BackendFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for the file backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.Redis.Address) == "" {
			errs = append(errs, errors.New("storage.redis.address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Timer.Step <= 0 {
		errs = append(errs, fmt.Errorf("timer.step must be positive, got %s", c.Timer.Step))
	}

	return errors.Join(errs...)
}

// IsRedis reports whether the roster lives in redis.
func (s StorageConfig) IsRedis() bool {
	return strings.EqualFold(strings.TrimSpace(s.Backend), BackendRedis)
}

// Open returns the roster backend the storage section describes.
func (s StorageConfig) Open() roster.Backend {
	if s.IsRedis() {
		return roster.NewRedisBackend(roster.RedisOptions{
			Address:  s.Redis.Address,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Key:      s.Key,
		})
	}
	return roster.NewFileBackend(s.Path)
}

// Assistant resolves the generation settings, loading the api key from the
// key file, the inline value or GEMINI_API_KEY in that order.
func (a AIConfig) Assistant() (assistant.Config, error) {
	out := assistant.Config{Enabled: a.Enabled, Provider: a.Provider}
	if !a.Enabled {
		return out, nil
	}

	gem := a.Gemini
	if gem == nil {
		gem = &GeminiConfig{}
	}
	out.Model = gem.Model
	out.MaxRetries = gem.MaxRetries

	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gem.APIKey,
		File:  gem.APIKeyFile,
		Env:   GeminiKeyEnv,
	})
	if err != nil {
		return out, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, GeminiKeyEnv)
	}
	out.APIKey = key
	return out, nil
}
