package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// InvalidDate is returned for dates that could not be read. It is stored as NULL.
var InvalidDate = time.Time{}

// DateLayouts are tried in order; the first that parses wins. Day and month
// accept one or two digits.
var DateLayouts = []string{
	"2-Jan-2006",
	"2/1/2006",
	"2006-01-02",
	"1/2/2006",
}

var reISODate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ParseDate reads s with DateLayouts and returns a UTC midnight date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return InvalidDate, false
}

// IsValidDate reports whether t is a real date rather than InvalidDate.
func IsValidDate(t time.Time) bool {
	return !t.Equal(InvalidDate)
}

// Date converts a raw date string. Empty input yields InvalidDate without an
// error or a model call.
func (n *Normalizer) Date(ctx context.Context, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return InvalidDate, nil
	}
	if t, ok := ParseDate(raw); ok {
		return t, nil
	}
	if !n.canAsk(n.prompts.HasDate) {
		return InvalidDate, fmt.Errorf("date %q: %w", raw, ErrUnparseable)
	}

	var t time.Time
	var iso string
	err := n.ask(ctx, "date", func() (string, error) { return n.prompts.Date(raw) }, func(reply string) error {
		iso = reISODate.FindString(reply)
		parsed, perr := time.Parse(time.DateOnly, iso)
		if perr != nil {
			return fmt.Errorf("date %q (model said %q): %w", raw, reply, ErrUnparseable)
		}
		t = parsed
		return nil
	})
	if err != nil {
		return InvalidDate, err
	}
	n.logger.Debug("normalize.date.fallback", zap.String("raw", raw), zap.String("date", iso))
	return t.UTC(), nil
}
