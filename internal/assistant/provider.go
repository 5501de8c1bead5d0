package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/assistant/gemini"
	"github.com/spigell/interview-assistant/internal/logger"
)

const ProviderGemini = "gemini"

// New returns the configured generator, or Disabled when generation is
// switched off or has no credential.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("assistant enabled without an api key, running without it")
		return Disabled{}, nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderGemini:
		g, err := gemini.NewGenerator(ctx, cfg.APIKey, cfg.Model, cfg.MaxRetries, log)
		if err != nil {
			return nil, err
		}
		logger.WithCommonFields(log, ProviderGemini, g.Model()).Info("assistant enabled")
		return Upstream(ProviderGemini, g), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}

// Upstream wraps a provider so every failure it reports matches ErrUpstream.
func Upstream(name string, g Generator) Generator {
	return upstream{name: name, next: g}
}

type upstream struct {
	name string
	next Generator
}

func (u upstream) Generate(ctx context.Context, prompt, system string) (string, error) {
	out, err := u.next.Generate(ctx, prompt, system)
	if err != nil {
		if errors.Is(err, ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrUpstream, u.name, err)
	}
	return out, nil
}
