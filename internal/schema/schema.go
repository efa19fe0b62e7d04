// Package schema derives the canonical field schema of a document template.
// Both template kinds feed the same FieldDefinition list: merge documents
// via their {{ tag }} markers, AcroForm PDFs via their native field list.
package schema

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/digifynow/autofill-agent/internal/docform"
	"github.com/digifynow/autofill-agent/internal/pdfform"
	"github.com/digifynow/autofill-agent/internal/types"
)

// SchemaError marks a template whose field schema cannot be derived.
// Fatal to a run; the template itself needs fixing.
type SchemaError struct {
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("schema error: %s", e.Message)
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// dateLabelPattern catches labels that clearly name a date, German and
// English, so unannotated fields still default to the date type.
var dateLabelPattern = regexp.MustCompile(`(?i)\b(date|datum|geburtsdatum|geboren|dob|birth)\b|_date$|_datum$|\bdob$`)

// Normalize derives the ordered field schema from raw template bytes,
// merging a previously stored schema on top when supplied. A structurally
// valid template with zero discoverable fields is rejected.
func Normalize(raw []byte, kind types.TemplateKind, stored []types.FieldDefinition) ([]types.FieldDefinition, error) {
	discovered, err := discover(raw, kind)
	if err != nil {
		return nil, err
	}
	if len(discovered) == 0 {
		return nil, &SchemaError{Message: "template has no discoverable fields"}
	}

	merged := mergeStored(discovered, stored)

	for i := range merged {
		if merged[i].DataType == "" {
			merged[i].DataType = inferType(merged[i])
		}
	}

	return merged, nil
}

func discover(raw []byte, kind types.TemplateKind) ([]types.FieldDefinition, error) {
	switch kind {
	case types.KindTaggedDoc:
		tags, err := docform.DiscoverTags(raw)
		if err != nil {
			return nil, &SchemaError{Message: "failed to scan template tags", Cause: err}
		}
		fields := make([]types.FieldDefinition, 0, len(tags))
		for _, tag := range tags {
			fields = append(fields, types.FieldDefinition{FieldID: tag})
		}
		return fields, nil

	case types.KindAcroForm:
		doc, err := pdfform.Parse(raw)
		if err != nil {
			return nil, &SchemaError{Message: "failed to parse PDF form", Cause: err}
		}
		native := doc.Fields()
		fields := make([]types.FieldDefinition, 0, len(native))
		seen := make(map[string]bool)
		for _, f := range native {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			fields = append(fields, types.FieldDefinition{
				FieldID:        f.Name,
				Label:          f.Label,
				DataType:       nativeType(f.Type),
				ValidationRule: choiceRule(f.Options),
			})
		}
		return fields, nil

	default:
		return nil, &SchemaError{Message: fmt.Sprintf("unknown template kind %q", kind)}
	}
}

// mergeStored overlays stored schema entries onto discovered fields.
// Stored attributes win; stored entries for fields no longer present in
// the template bytes are dropped with a warning.
func mergeStored(discovered, stored []types.FieldDefinition) []types.FieldDefinition {
	if len(stored) == 0 {
		return discovered
	}

	byID := make(map[string]types.FieldDefinition, len(stored))
	for _, s := range stored {
		byID[s.FieldID] = s
	}

	merged := make([]types.FieldDefinition, len(discovered))
	for i, d := range discovered {
		merged[i] = d
		s, ok := byID[d.FieldID]
		if !ok {
			continue
		}
		delete(byID, d.FieldID)
		if s.Label != "" {
			merged[i].Label = s.Label
		}
		if s.DataType != "" {
			merged[i].DataType = s.DataType
		}
		if s.ExampleValue != "" {
			merged[i].ExampleValue = s.ExampleValue
		}
		if s.ValidationRule != "" {
			merged[i].ValidationRule = s.ValidationRule
		}
	}

	for id := range byID {
		log.Printf("Warning: stored schema field %q no longer present in template, dropping", id)
	}

	return merged
}

// inferType defaults unannotated fields: date when the label (or the field
// ID when no label exists) reads like a date, text otherwise.
func inferType(f types.FieldDefinition) types.DataType {
	label := f.Label
	if label == "" {
		label = f.FieldID
	}
	if dateLabelPattern.MatchString(strings.ToLower(label)) {
		return types.DataTypeDate
	}
	return types.DataTypeText
}

// nativeType maps AcroForm field types onto the schema's data types.
// Anything unsupported normalizes to text.
func nativeType(ft pdfform.FieldType) types.DataType {
	switch ft {
	case pdfform.FieldButton:
		return types.DataTypeBoolean
	case pdfform.FieldText, pdfform.FieldChoice:
		return "" // left open for label inference
	default:
		return types.DataTypeText
	}
}

// choiceRule encodes choice-field options as an enumerated validation rule.
func choiceRule(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return "enum:" + strings.Join(options, "|")
}
