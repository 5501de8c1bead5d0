package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/assistant"
	"github.com/spigell/interview-assistant/internal/config"
	"github.com/spigell/interview-assistant/internal/logger"
	"github.com/spigell/interview-assistant/internal/metrics"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/scoring"
	"github.com/spigell/interview-assistant/internal/session"
	"github.com/spigell/interview-assistant/internal/timer"
)

type closer interface {
	Close() error
}

// runtime is what every command needs: config, logger and a loaded roster.
type runtime struct {
	config  *config.Config
	logger  *zap.Logger
	backend roster.Backend
	store   *roster.Store
}

func newRuntime(ctx context.Context) *runtime {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(cfg), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	backend := cfg.Storage.Open()
	store := roster.New(backend, logger)
	if err := store.Load(ctx); err != nil {
		logger.Fatal("loading the roster",
			zap.Error(err),
			zap.String("backend", cfg.Storage.Backend),
		)
	}
	metrics.RosterCandidates.Set(float64(store.Len()))

	logger.Debug("roster loaded", zap.Int("candidates", store.Len()))

	return &runtime{config: cfg, logger: logger, backend: backend, store: store}
}

func (rt *runtime) newEngine(ctx context.Context) *session.Engine {
	ac, err := rt.config.AI.Assistant()
	if err != nil {
		rt.logger.Warn("running without the assistant", zap.Error(err))
		ac = assistant.Config{}
	}

	generator, err := assistant.New(ctx, ac, rt.logger)
	if err != nil {
		rt.logger.Fatal("building the assistant", zap.Error(err))
	}

	engine, err := session.NewEngine(session.Deps{
		Store:     rt.store,
		Scorer:    scoring.New(rt.config.Scoring.CapToMax),
		Countdown: timer.New(rt.config.Timer.Step),
		Assistant: generator,
		Logger:    rt.logger,
	})
	if err != nil {
		rt.logger.Fatal("building the session engine", zap.Error(err))
	}
	return engine
}

func (rt *runtime) close() {
	if c, ok := rt.backend.(closer); ok {
		if err := c.Close(); err != nil {
			rt.logger.Debug("closing the roster backend", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.AI.Gemini != nil {
		gem := *out.AI.Gemini
		if gem.APIKey != "" {
			gem.APIKey = "***"
		}
		out.AI.Gemini = &gem
	}
	if out.Storage.Redis.Password != "" {
		out.Storage.Redis.Password = "***"
	}
	return out
}
