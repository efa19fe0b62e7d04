package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Transform directives carried on candidates. Only date normalization is
// supported; nothing else is guessed.
const (
	transformDatePrefix = "date:"
	// DefaultDateLayout is the target layout when a template does not
	// declare one.
	DefaultDateLayout = "2006-01-02"
)

// DateTransform builds the transform directive for a date-typed field.
// layout is the template's declared Go date layout; empty means the
// default ISO form.
func DateTransform(layout string) string {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return transformDatePrefix + layout
}

// dateInputLayouts are the formats accepted when parsing a customer-side
// date value, most specific first.
var dateInputLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
}

// ApplyTransform materializes a raw value through a candidate's transform
// directive. An empty directive passes the value through. A directive
// that cannot be applied (unparsable date) returns an error so the
// resolver can demote the field to missing instead of writing a malformed
// value.
func ApplyTransform(transform, value string) (string, error) {
	if transform == "" {
		return value, nil
	}

	if layout, ok := strings.CutPrefix(transform, transformDatePrefix); ok {
		return normalizeDate(value, layout)
	}

	return "", fmt.Errorf("unknown transform directive %q", transform)
}

func normalizeDate(value, layout string) (string, error) {
	v := strings.TrimSpace(value)
	for _, in := range dateInputLayouts {
		if t, err := time.Parse(in, v); err == nil {
			return t.Format(layout), nil
		}
	}
	return "", fmt.Errorf("unparsable date value %q", value)
}
