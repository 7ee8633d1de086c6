// Package gemini adapts Google's Generative Language API to llm.Generator.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

var _ llm.Generator = (*Client)(nil)

type Config struct {
	APIKey      string
	Model       string // default "gemini-1.5-flash"
	Temperature float32
	Timeout     time.Duration
	// Endpoint overrides the API host (tests, regional endpoints).
	Endpoint string
}

// Client is created once at startup and shared; the underlying genai client is safe for concurrent use.
type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: no candidates: %w", llm.ErrEmptyReply)
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		c.logger.Warn("llm.gemini.truncated", zap.String("model", c.cfg.Model))
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini: finish reason %s: %w", cand.FinishReason, llm.ErrEmptyReply)
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}
