// Package types provides type definitions for structured data used throughout the autofill engine.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DataType classifies the value a template field expects.
type DataType string

// Supported field data types. Unknown native types normalize to DataTypeText.
const (
	DataTypeText    DataType = "text"
	DataTypeDate    DataType = "date"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
)

// TemplateKind identifies the document format a template is stored in.
type TemplateKind string

const (
	// KindTaggedDoc is a merge-style document (DOCX or plain body) with
	// {{ tag }} placeholder markers embedded in the document text.
	KindTaggedDoc TemplateKind = "docx_tags"
	// KindAcroForm is a PDF with a native interactive AcroForm field list.
	KindAcroForm TemplateKind = "pdf_acroform"
)

// FieldDefinition describes one fillable slot in a template.
// FieldID is unique within a template and stable across re-parses of the
// same template bytes.
type FieldDefinition struct {
	FieldID        string   `json:"field_id"`
	Label          string   `json:"label,omitempty"`
	DataType       DataType `json:"data_type"`
	ExampleValue   string   `json:"example_value,omitempty"`
	ValidationRule string   `json:"validation_rule,omitempty"`
}

// DataValue is one flattened customer value with provenance.
// Present distinguishes "known key, no value" from an unknown key.
type DataValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
	Section string `json:"section"`
}

// CustomerDataMap is the flat key -> value snapshot of a customer record.
// Keys are deterministic for a given record shape (e.g. "personal.last_name").
type CustomerDataMap map[string]DataValue

// Keys returns the key set in sorted order.
func (m CustomerDataMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value for key and whether the key exists at all.
func (m CustomerDataMap) Lookup(key string) (DataValue, bool) {
	v, ok := m[key]
	return v, ok
}

// CandidateSource identifies which strategy proposed a mapping candidate.
type CandidateSource string

const (
	SourceInference CandidateSource = "inference"
	SourceFallback  CandidateSource = "fallback"
	SourceManual    CandidateSource = "manual"
)

// MappingCandidate is a proposed link from a template field to a customer
// data key. An empty CustomerDataKey means "no match".
type MappingCandidate struct {
	FieldID         string          `json:"field_id"`
	CustomerDataKey string          `json:"customer_data_key,omitempty"`
	Transform       string          `json:"transform,omitempty"`
	Confidence      float64         `json:"confidence"`
	Source          CandidateSource `json:"source"`
}

// ResolvedMapping is the final decision for one field after resolution:
// either a materialized value or an explicit missing marker.
type ResolvedMapping struct {
	FieldID         string          `json:"field_id"`
	CustomerDataKey string          `json:"customer_data_key,omitempty"`
	Value           string          `json:"value,omitempty"`
	Missing         bool            `json:"missing"`
	Confidence      float64         `json:"confidence,omitempty"`
	Source          CandidateSource `json:"source,omitempty"`
	Transform       string          `json:"transform,omitempty"`
}

// RunState is the lifecycle state of an autofill run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunResolving RunState = "resolving"
	RunRendering RunState = "rendering"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Strategy labels recorded on a finished report.
const (
	StrategyInference = "inference"
	StrategyFallback  = "fallback"
)

// MappingReport is the persisted audit record of one autofill run.
// Immutable after finalization; manual corrections produce a new run that
// references the prior one via CorrectionOf.
type MappingReport struct {
	RunID            uuid.UUID         `json:"run_id"`
	BrokerID         uuid.UUID         `json:"broker_id"`
	TemplateID       *uuid.UUID        `json:"template_id,omitempty"`
	BasisDocumentID  *uuid.UUID        `json:"basis_document_id,omitempty"`
	CustomerID       uuid.UUID         `json:"customer_id"`
	CorrectionOf     *uuid.UUID        `json:"correction_of,omitempty"`
	State            RunState          `json:"state"`
	Strategy         string            `json:"strategy,omitempty"`
	Resolved         []ResolvedMapping `json:"resolved,omitempty"`
	MissingFields    []string          `json:"missing_fields,omitempty"`
	GeneratedFileRef string            `json:"generated_file_ref,omitempty"`
	FailureKind      string            `json:"failure_kind,omitempty"`
	FailureDetail    string            `json:"failure_detail,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	FinalizedAt      *time.Time        `json:"finalized_at,omitempty"`
}

// MissingList extracts the field IDs resolved as missing, in order.
func MissingList(resolved []ResolvedMapping) []string {
	var missing []string
	for _, r := range resolved {
		if r.Missing {
			missing = append(missing, r.FieldID)
		}
	}
	return missing
}
