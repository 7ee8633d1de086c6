// Package ollama adapts a local Ollama server to llm.Generator.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

var _ llm.Generator = (*Client)(nil)

type Config struct {
	BaseURL     string // default http://localhost:11434
	Model       string // default "llama3"
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	api    *api.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", cfg.BaseURL, err)
	}
	return &Client{
		cfg:    cfg,
		api:    api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		logger: logger,
	}, nil
}

// Generate issues a non-streaming /api/generate call.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: &stream,
	}
	if c.cfg.Temperature > 0 {
		req.Options = map[string]any{"temperature": c.cfg.Temperature}
	}

	var b strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("ollama: %w", llm.ErrEmptyReply)
	}
	return out, nil
}
