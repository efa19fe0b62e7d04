package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/digifynow/autofill-agent/internal/llm"
	"github.com/digifynow/autofill-agent/internal/schemas"
	"github.com/digifynow/autofill-agent/internal/types"
)

// InferenceUnavailableError wraps backend errors, timeouts, and malformed
// payloads. The coordinator logs it and continues with fallback candidates;
// it is never surfaced as a run failure.
type InferenceUnavailableError struct {
	Cause error
}

func (e *InferenceUnavailableError) Error() string {
	return fmt.Sprintf("inference unavailable: %v", e.Cause)
}

func (e *InferenceUnavailableError) Unwrap() error {
	return e.Cause
}

// responseSchema is the JSON Schema the inference payload must satisfy
// before any candidate is accepted.
const responseSchema = `{
	"type": "object",
	"required": ["mappings"],
	"additionalProperties": false,
	"properties": {
		"mappings": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["field_id", "customer_data_key", "confidence"],
				"additionalProperties": false,
				"properties": {
					"field_id": {"type": "string", "minLength": 1},
					"customer_data_key": {"type": ["string", "null"]},
					"transform": {"type": ["string", "null"]},
					"confidence": {"type": "number"}
				}
			}
		}
	}
}`

// mappingResponse mirrors the schema above.
type mappingResponse struct {
	Mappings []mappingEntry `json:"mappings"`
}

type mappingEntry struct {
	FieldID         string  `json:"field_id"`
	CustomerDataKey *string `json:"customer_data_key"`
	Transform       *string `json:"transform"`
	Confidence      float64 `json:"confidence"`
}

// InferenceStrategy proposes mappings through an LLM backend. Only enabled
// when a backend is configured; the coordinator skips it otherwise.
type InferenceStrategy struct {
	client        llm.Client
	tier          llm.ModelTier
	timeout       time.Duration
	includeValues bool
}

// InferenceOptions configures the inference strategy.
type InferenceOptions struct {
	// Timeout is the call budget; exceeding it is treated exactly like a
	// backend error. Zero means the DefaultInferenceTimeout.
	Timeout time.Duration
	// IncludeValues sends customer values alongside keys. Off by default:
	// the key set plus field metadata is usually enough and keeps customer
	// data out of the prompt.
	IncludeValues bool
}

// DefaultInferenceTimeout bounds a mapping inference call.
const DefaultInferenceTimeout = 30 * time.Second

// NewInferenceStrategy wires a Gemini-backed mapping proposer.
func NewInferenceStrategy(client llm.Client, opts InferenceOptions) *InferenceStrategy {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	return &InferenceStrategy{
		client:        client,
		tier:          llm.TierStandard,
		timeout:       timeout,
		includeValues: opts.IncludeValues,
	}
}

// Name implements Strategy.
func (s *InferenceStrategy) Name() string { return types.StrategyInference }

// Propose asks the backend for mapping candidates. Every failure mode
// (transport error, timeout, unparsable or schema-invalid payload) returns
// an empty list with an InferenceUnavailableError; the run goes on with
// fallback candidates only.
func (s *InferenceStrategy) Propose(ctx context.Context, fields []types.FieldDefinition, data types.CustomerDataMap) ([]types.MappingCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := buildMappingPrompt(fields, data, s.includeValues)

	raw, err := s.client.GenerateJSON(callCtx, prompt, s.tier)
	if err != nil {
		return nil, &InferenceUnavailableError{Cause: err}
	}

	if err := schemas.ValidateJSONString(responseSchema, raw); err != nil {
		return nil, &InferenceUnavailableError{Cause: err}
	}

	var resp mappingResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &InferenceUnavailableError{Cause: err}
	}

	return filterCandidates(resp, fields, data), nil
}

// filterCandidates is the anti-hallucination guard: candidates referencing
// a field outside the template schema or a key outside the customer key
// set are discarded and logged, never propagated. Confidence is clamped
// to [0,1].
func filterCandidates(resp mappingResponse, fields []types.FieldDefinition, data types.CustomerDataMap) []types.MappingCandidate {
	knownFields := make(map[string]bool, len(fields))
	for _, f := range fields {
		knownFields[f.FieldID] = true
	}

	var out []types.MappingCandidate
	for _, m := range resp.Mappings {
		if !knownFields[m.FieldID] {
			log.Printf("Warning: inference proposed unknown field %q, discarding", m.FieldID)
			continue
		}
		if m.CustomerDataKey == nil {
			// Explicit "no match" answer; nothing to record.
			continue
		}
		if _, ok := data.Lookup(*m.CustomerDataKey); !ok {
			log.Printf("Warning: inference proposed unknown customer key %q for field %q, discarding", *m.CustomerDataKey, m.FieldID)
			continue
		}

		candidate := types.MappingCandidate{
			FieldID:         m.FieldID,
			CustomerDataKey: *m.CustomerDataKey,
			Confidence:      clamp01(m.Confidence),
			Source:          types.SourceInference,
		}
		if m.Transform != nil {
			candidate.Transform = *m.Transform
		}
		out = append(out, candidate)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// buildMappingPrompt constructs the structured-output prompt: the field
// schema, the customer key catalog, and strict instructions pinning the
// model to the provided sets.
func buildMappingPrompt(fields []types.FieldDefinition, data types.CustomerDataMap, includeValues bool) string {
	var sb strings.Builder

	sb.WriteString("You are an expert at mapping document form fields to customer record keys for a real-estate broker.\n")
	sb.WriteString("Your task is to link each template field to the customer data key holding the matching information.\n\n")

	sb.WriteString("Template fields:\n")
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("- field_id: %q, data_type: %s", f.FieldID, f.DataType))
		if f.Label != "" {
			sb.WriteString(fmt.Sprintf(", label: %q", f.Label))
		}
		if f.ExampleValue != "" {
			sb.WriteString(fmt.Sprintf(", example: %q", f.ExampleValue))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nAvailable customer data keys:\n")
	for _, key := range data.Keys() {
		if includeValues {
			v, _ := data.Lookup(key)
			if v.Present {
				sb.WriteString(fmt.Sprintf("- %s = %q\n", key, v.Value))
				continue
			}
		}
		sb.WriteString(fmt.Sprintf("- %s\n", key))
	}

	sb.WriteString("\nReturn ONLY valid JSON matching this exact structure:\n")
	sb.WriteString(`{"mappings": [{"field_id": string, "customer_data_key": string or null, "transform": string or null, "confidence": number}]}`)
	sb.WriteString("\n\nIMPORTANT:\n")
	sb.WriteString("- Use ONLY field_ids and customer_data_keys from the lists above. Never invent keys.\n")
	sb.WriteString("- Set customer_data_key to null when no key fits a field.\n")
	sb.WriteString("- confidence is your certainty in [0,1].\n")
	sb.WriteString("- transform may only be a date directive like \"date:2006-01-02\" (Go layout), or null.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n")

	return sb.String()
}
