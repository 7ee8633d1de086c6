package llm

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned by providers when the model produced no text.
var ErrEmptyReply = errors.New("empty model reply")

// Generator is the model capability every pipeline stage depends on:
// one prompt in, free text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerateFunc adapts a plain function to Generator.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Forgetter is implemented by generators that remember replies.
type Forgetter interface {
	Forget(ctx context.Context, prompt string)
}

// Forget drops any remembered reply for prompt. Callers use it for replies they
// could not use, so the next attempt reaches the model again.
func Forget(ctx context.Context, gen Generator, prompt string) {
	if f, ok := gen.(Forgetter); ok {
		f.Forget(ctx, prompt)
	}
}
