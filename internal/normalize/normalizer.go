// Package normalize coerces untrusted model output into typed transaction fields.
// Each field has a deterministic fast path; the model is consulted only when that
// path fails and the profile configures a prompt for it.
package normalize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/llm"
)

// ErrUnparseable marks a field that fell back to its default value.
var ErrUnparseable = errors.New("unparseable")

// Normalizer holds the generator and profile prompts used for AI fallbacks.
// A nil generator disables every fallback.
type Normalizer struct {
	gen     llm.Generator
	prompts *llm.Prompts
	logger  *zap.Logger
}

func NewNormalizer(gen llm.Generator, prompts *llm.Prompts, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{gen: gen, prompts: prompts, logger: logger}
}

// ask renders a prompt with render and hands the fence-stripped reply to accept.
// A reply accept rejects is evicted from any reply cache.
func (n *Normalizer) ask(ctx context.Context, kind string, render func() (string, error), accept func(reply string) error) error {
	prompt, err := render()
	if err != nil {
		return err
	}
	reply, err := n.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%s fallback: %w", kind, err)
	}
	if err := accept(llm.StripCodeFences(reply)); err != nil {
		llm.Forget(ctx, n.gen, prompt)
		return err
	}
	return nil
}

func (n *Normalizer) canAsk(has func() bool) bool {
	return n.gen != nil && n.prompts != nil && has()
}
