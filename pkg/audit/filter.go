package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FilterAction defines what happens to a matched detail field.
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

var defaultSensitiveFields = map[string]FilterAction{
	"password":      FilterActionRemove,
	"password_hash": FilterActionRemove,
	"passwordhash":  FilterActionRemove,
	"secret":        FilterActionRemove,
	"token":         FilterActionRemove,
	"access_token":  FilterActionRemove,
	"api_key":       FilterActionRemove,
	"card_number":   FilterActionMask,
	"phone":         FilterActionMask,
}

// FieldFilter keeps credentials out of record details.
// Emails are kept: the audit trail must identify the acting user.
type FieldFilter struct {
	rules map[string]FilterAction
}

// FilterOption configures a FieldFilter.
type FilterOption func(*FieldFilter)

// WithFieldRule adds or overrides the rule for a field name (case-insensitive).
func WithFieldRule(field string, action FilterAction) FilterOption {
	return func(f *FieldFilter) {
		f.rules[strings.ToLower(field)] = action
	}
}

// NewFieldFilter returns a filter with the default sensitive fields.
func NewFieldFilter(opts ...FilterOption) *FieldFilter {
	f := &FieldFilter{rules: make(map[string]FilterAction, len(defaultSensitiveFields))}
	for k, v := range defaultSensitiveFields {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns a copy of fields with the rules applied.
func (f *FieldFilter) Filter(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		action, ok := f.rules[strings.ToLower(k)]
		if !ok {
			out[k] = v
			continue
		}
		switch action {
		case FilterActionRemove:
		case FilterActionHash:
			sum := sha256.Sum256([]byte(fmt.Sprint(v)))
			out[k] = hex.EncodeToString(sum[:])
		case FilterActionMask:
			out[k] = mask(fmt.Sprint(v))
		default:
			out[k] = v
		}
	}
	return out
}

func mask(s string) string {
	n := len(s)
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	}
	return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
}
