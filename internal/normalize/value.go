package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/extract"
)

var reNonNumeric = regexp.MustCompile(`[^\d.]`)

// ParseValue keeps only digits and dots, trims stray dots and parses what is
// left. "ரூ. 1,50,000/-" reads as 150000.
func ParseValue(s string) (decimal.Decimal, bool) {
	cleaned := strings.Trim(reNonNumeric.ReplaceAllString(s, ""), ".")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Value converts a raw monetary value. Empty input is 0 without an error; an
// unparseable value is 0 with an error wrapping ErrUnparseable.
func (n *Normalizer) Value(ctx context.Context, raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil && !d.IsNegative() {
			return d.InexactFloat64(), nil
		}
	case float64:
		if v >= 0 {
			return v, nil
		}
	}

	s := strings.TrimSpace(extract.Text(raw))
	if s == "" {
		return 0, nil
	}
	if d, ok := ParseValue(s); ok {
		return d.InexactFloat64(), nil
	}
	if !n.canAsk(n.prompts.HasValue) {
		return 0, fmt.Errorf("value %q: %w", s, ErrUnparseable)
	}

	var d decimal.Decimal
	err := n.ask(ctx, "value", func() (string, error) { return n.prompts.Value(s) }, func(reply string) error {
		parsed, ok := ParseValue(reply)
		if !ok {
			return fmt.Errorf("value %q (model said %q): %w", s, reply, ErrUnparseable)
		}
		d = parsed
		return nil
	})
	if err != nil {
		return 0, err
	}
	n.logger.Debug("normalize.value.fallback", zap.String("raw", s), zap.String("value", d.String()))
	return d.InexactFloat64(), nil
}
