package mapping

import (
	"context"

	"github.com/digifynow/autofill-agent/internal/match"
	"github.com/digifynow/autofill-agent/internal/types"
)

// AcceptanceThreshold is the minimum similarity score for a fallback match.
// Below it a field is better left unmatched than wrongly matched.
const AcceptanceThreshold = 0.60

// FallbackStrategy is the deterministic string-similarity matcher. It is
// always available and needs no external services.
type FallbackStrategy struct {
	// DateLayout is the template's declared date layout, applied as the
	// transform on matched date fields. Empty means the ISO default.
	DateLayout string
}

// NewFallbackStrategy returns a matcher targeting the given date layout.
func NewFallbackStrategy(dateLayout string) *FallbackStrategy {
	return &FallbackStrategy{DateLayout: dateLayout}
}

// Name implements Strategy.
func (s *FallbackStrategy) Name() string { return types.StrategyFallback }

// Propose selects, per field, the customer key with the highest similarity
// between the field's label (field ID when unlabeled) and the key's
// human-readable form. Confidence is the similarity score itself. Fields
// whose best score stays below the acceptance threshold get no candidate.
func (s *FallbackStrategy) Propose(_ context.Context, fields []types.FieldDefinition, data types.CustomerDataMap) ([]types.MappingCandidate, error) {
	keys := data.Keys()

	var candidates []types.MappingCandidate
	for _, field := range fields {
		needle := field.Label
		if needle == "" {
			needle = field.FieldID
		}

		bestKey := ""
		bestScore := 0.0
		for _, key := range keys {
			score := keyScore(needle, key)
			// Sorted key iteration makes the strict > tie-break stable.
			if score > bestScore {
				bestScore = score
				bestKey = key
			}
		}

		if bestKey == "" || bestScore < AcceptanceThreshold {
			continue
		}

		candidate := types.MappingCandidate{
			FieldID:         field.FieldID,
			CustomerDataKey: bestKey,
			Confidence:      bestScore,
			Source:          types.SourceFallback,
		}
		// Date normalization is the only transform the fallback applies;
		// no unit conversions, no boolean phrase guessing.
		if field.DataType == types.DataTypeDate {
			candidate.Transform = DateTransform(s.DateLayout)
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// keyScore compares a field label against a customer key using both the
// whole identifier and its token set, taking the better of the two. The
// token view rewards "last name" against "personal.last_name" where the
// section prefix would otherwise drag the raw score down.
func keyScore(label, key string) float64 {
	whole := match.Score(label, key)
	tokens := match.TokenScore(label, key)
	if tokens > whole {
		return tokens
	}
	return whole
}
