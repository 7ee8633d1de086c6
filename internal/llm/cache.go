package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a ReplyStore when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ReplyStore is the key-value capability the reply cache needs.
type ReplyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CachedGenerator memoizes model replies keyed by model and prompt. Identical
// chunks re-uploaded later skip the model call. Store errors degrade to a miss.
type CachedGenerator struct {
	inner      Generator
	store      ReplyStore
	model      string
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewCachedGenerator wraps inner. cacheTotal has a single "result" label
// ("hit"/"miss") and may be nil.
func NewCachedGenerator(inner Generator, store ReplyStore, model, prefix string, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *CachedGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGenerator{
		inner:      inner,
		store:      store,
		model:      model,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := c.cacheKey(prompt)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil && len(data) > 0:
		c.incCache("hit")
		return string(data), nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("llm.cache.get_failed", zap.String("key", key), zap.Error(err))
	}
	c.incCache("miss")

	reply, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if err := c.store.Set(ctx, key, []byte(reply)); err != nil {
		c.logger.Warn("llm.cache.set_failed", zap.String("key", key), zap.Error(err))
	}
	return reply, nil
}

// Forget evicts the reply stored for prompt.
func (c *CachedGenerator) Forget(ctx context.Context, prompt string) {
	key := c.cacheKey(prompt)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("llm.cache.delete_failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("llm.cache.forgot", zap.String("key", key))
}

func (c *CachedGenerator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedGenerator) cacheKey(prompt string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + prompt))
	return c.prefix + hex.EncodeToString(h[:])
}
