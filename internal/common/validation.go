package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// Validator collects failures while parsing request parameters.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value any) *ValidationError

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Int parses an optional integer; empty input yields def.
func (v *Validator) Int(fieldName, raw string, def int, rules ...ValidationRule) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.errors = append(v.errors, ValidationError{Field: fieldName, Value: raw, Message: "must be an integer"})
		return def
	}
	v.Field(fieldName, n, rules...)
	return n
}

// Float parses an optional number; empty input yields nil.
func (v *Validator) Float(fieldName, raw string, rules ...ValidationRule) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		v.errors = append(v.errors, ValidationError{Field: fieldName, Value: raw, Message: "must be a number"})
		return nil
	}
	v.Field(fieldName, f, rules...)
	return &f
}

// Date parses an optional YYYY-MM-DD (or RFC 3339) value; empty input yields nil.
func (v *Validator) Date(fieldName, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	v.errors = append(v.errors, ValidationError{Field: fieldName, Value: raw, Message: "must be a date (YYYY-MM-DD)"})
	return nil
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Err returns an INVALID_INPUT AppError wrapping ErrValidation, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError("INVALID_INPUT", v.ErrorMessage(), ErrValidation)
}

// Required - Common validation rules
func Required(fieldName string, value any) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	if v, ok := value.(string); ok && strings.TrimSpace(v) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// MaxLength limits the rune count of string values.
func MaxLength(max int) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(str) > max {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// Min enforces a lower bound for int and float64 values.
func Min(min float64) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		if n, ok := asFloat(value); ok && n < min {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be >= %v", min)}
		}
		return nil
	}
}

// Max enforces an upper bound for int and float64 values.
func Max(max float64) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		if n, ok := asFloat(value); ok && n > max {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be <= %v", max)}
		}
		return nil
	}
}

func UUID(fieldName string, value any) *ValidationError {
	str, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if _, err := uuid.Parse(str); err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a valid UUID"}
	}
	return nil
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
