package mapping

import (
	"log"

	"github.com/digifynow/autofill-agent/internal/types"
)

// sourceRank orders candidate sources for confidence ties. Manual wins
// unconditionally before ranking even applies.
var sourceRank = map[types.CandidateSource]int{
	types.SourceInference: 2,
	types.SourceFallback:  1,
	types.SourceManual:    0,
}

// Resolve merges candidate lists into exactly one ResolvedMapping per
// field, applying the no-invention policy:
//
//  1. Candidates whose key resolves to a null/empty value are dropped; a
//     field is never filled with a placeholder or unbacked value.
//  2. The highest-confidence survivor wins; ties prefer inference over
//     fallback. A manual candidate wins unconditionally.
//  3. The winner's transform materializes the value; a transform failure
//     demotes the field to missing rather than writing a malformed value.
//  4. Fields with no surviving candidate resolve to missing. That is
//     normal output, not an error.
//
// The result preserves the field order of the template schema.
func Resolve(fields []types.FieldDefinition, candidates []types.MappingCandidate, data types.CustomerDataMap) []types.ResolvedMapping {
	perField := make(map[string][]types.MappingCandidate)
	for _, c := range candidates {
		perField[c.FieldID] = append(perField[c.FieldID], c)
	}

	resolved := make([]types.ResolvedMapping, 0, len(fields))
	for _, field := range fields {
		resolved = append(resolved, resolveField(field, perField[field.FieldID], data))
	}
	return resolved
}

func resolveField(field types.FieldDefinition, candidates []types.MappingCandidate, data types.CustomerDataMap) types.ResolvedMapping {
	missing := types.ResolvedMapping{FieldID: field.FieldID, Missing: true}

	winner, ok := pickWinner(candidates, data)
	if !ok {
		return missing
	}

	value, _ := data.Lookup(winner.CustomerDataKey)
	materialized, err := ApplyTransform(winner.Transform, value.Value)
	if err != nil {
		log.Printf("Warning: transform %q failed for field %q: %v, resolving as missing", winner.Transform, field.FieldID, err)
		return missing
	}

	return types.ResolvedMapping{
		FieldID:         field.FieldID,
		CustomerDataKey: winner.CustomerDataKey,
		Value:           materialized,
		Confidence:      winner.Confidence,
		Source:          winner.Source,
		Transform:       winner.Transform,
	}
}

func pickWinner(candidates []types.MappingCandidate, data types.CustomerDataMap) (types.MappingCandidate, bool) {
	var best types.MappingCandidate
	found := false

	for _, c := range candidates {
		if c.CustomerDataKey == "" {
			continue
		}
		// No invention: only keys that exist and carry a real value back
		// a fill.
		value, ok := data.Lookup(c.CustomerDataKey)
		if !ok || !value.Present {
			continue
		}

		// Broker override is authoritative regardless of confidence.
		if c.Source == types.SourceManual {
			return c, true
		}

		if !found || betterThan(c, best) {
			best = c
			found = true
		}
	}

	return best, found
}

func betterThan(c, best types.MappingCandidate) bool {
	if c.Confidence != best.Confidence {
		return c.Confidence > best.Confidence
	}
	return sourceRank[c.Source] > sourceRank[best.Source]
}
