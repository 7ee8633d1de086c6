package llm

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
)

// Instrumented records request counts, latency and a log line per model call.
type Instrumented struct {
	inner    Generator
	provider string
	model    string
	logger   *zap.Logger
}

func NewInstrumented(inner Generator, provider, model string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{inner: inner, provider: provider, model: model, logger: logger}
}

func (g *Instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	log := common.LoggerFromContext(ctx, g.logger).With(
		zap.String("llm_req_id", rid),
		zap.String("provider", g.provider),
		zap.String("model", g.model),
	)
	start := time.Now()

	reply, err := g.inner.Generate(ctx, prompt)
	elapsed := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(g.provider, g.model).Observe(elapsed.Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		log.Warn("llm.generate.failed",
			zap.Int("prompt_len", len(prompt)),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()),
			zap.Error(err))
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, "empty").Inc()
		log.Warn("llm.generate.empty", zap.Int64("elapsed_ms", elapsed.Milliseconds()))
		return "", ErrEmptyReply
	}

	metrics.LLMRequestsTotal.WithLabelValues(g.provider, g.model, "ok").Inc()
	log.Debug("llm.generate.ok",
		zap.Int("prompt_len", len(prompt)),
		zap.Int("reply_len", len(reply)),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()))
	return reply, nil
}
