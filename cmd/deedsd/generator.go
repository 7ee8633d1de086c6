package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm/ollama"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/deeds-tracker/internal/llm/redisstore"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
)

// buildGenerator assembles the decorator chain: provider -> Instrumented -> Cached.
// The returned func releases provider and cache connections.
func buildGenerator(ctx context.Context, cfg *common.Config, logger *zap.Logger) (llm.Generator, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	base, closeBase, err := newProvider(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, cleanup, err
	}
	if closeBase != nil {
		closers = append(closers, closeBase)
	}

	var gen llm.Generator = llm.NewInstrumented(base, cfg.LLM.Provider, cfg.LLM.Model, logger)

	if cfg.Cache.Enabled {
		store, err := redisstore.New(redisstore.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			// the cache is an optimisation; run without it
			logger.Warn("llm.cache.unavailable", zap.Strings("addrs", cfg.Cache.Addrs), zap.Error(err))
		} else {
			closers = append(closers, store.Close)
			gen = llm.NewCachedGenerator(gen, store, cfg.LLM.Model, cfg.Cache.Prefix, metrics.LLMCacheTotal, logger)
			logger.Info("llm.cache.enabled", zap.Duration("ttl", cfg.Cache.TTL))
		}
	}

	logger.Info("llm.provider.ready", zap.String("provider", cfg.LLM.Provider), zap.String("model", cfg.LLM.Model))
	return gen, cleanup, nil
}

func newProvider(ctx context.Context, cfg common.LLMConfig, logger *zap.Logger) (llm.Generator, func(), error) {
	switch cfg.Provider {
	case "gemini", "":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Endpoint:    cfg.BaseURL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil, nil
	case "ollama":
		c, err := ollama.NewClient(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama client: %w", err)
		}
		return c, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
