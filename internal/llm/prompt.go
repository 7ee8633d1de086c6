package llm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

// Prompts renders the prompt templates of one profile.
type Prompts struct {
	fields  []common.FieldSpec
	clean   *template.Template
	extract *template.Template
	names   *template.Template
	value   *template.Template
	date    *template.Template
}

// NewPrompts parses every template of the profile up front so a bad template
// fails at startup instead of mid-request.
func NewPrompts(p common.ProfileConfig) (*Prompts, error) {
	out := &Prompts{fields: p.Fields}
	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"clean", p.Prompts.Clean, &out.clean},
		{"extract", p.Prompts.Extract, &out.extract},
		{"names", p.Prompts.Names, &out.names},
		{"value", p.Prompts.Value, &out.value},
		{"date", p.Prompts.Date, &out.date},
	} {
		if strings.TrimSpace(t.src) == "" {
			continue
		}
		tmpl, err := template.New(t.name).Option("missingkey=error").Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	if out.extract == nil {
		return nil, fmt.Errorf("extract prompt is required")
	}
	return out, nil
}

// HasClean, HasNames, HasValue and HasDate report whether the optional AI steps are configured.
func (p *Prompts) HasClean() bool { return p.clean != nil }
func (p *Prompts) HasNames() bool { return p.names != nil }
func (p *Prompts) HasValue() bool { return p.value != nil }
func (p *Prompts) HasDate() bool  { return p.date != nil }

// Fields returns the profile's field schema.
func (p *Prompts) Fields() []common.FieldSpec { return p.fields }

func (p *Prompts) Clean(text string) (string, error) {
	return render(p.clean, "clean", map[string]any{"Text": text})
}

func (p *Prompts) Extract(text string) (string, error) {
	return render(p.extract, "extract", map[string]any{"Text": text, "Fields": p.fields})
}

func (p *Prompts) Names(buyers, sellers string) (string, error) {
	return render(p.names, "names", map[string]any{"Buyers": buyers, "Sellers": sellers})
}

func (p *Prompts) Value(value string) (string, error) {
	return render(p.value, "value", map[string]any{"Value": value})
}

func (p *Prompts) Date(date string) (string, error) {
	return render(p.date, "date", map[string]any{"Date": date})
}

func render(t *template.Template, name string, data map[string]any) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%s prompt not configured", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return b.String(), nil
}
