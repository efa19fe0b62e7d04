// Package mapping proposes and resolves links between template fields and
// customer data keys. Two strategies produce candidates, an optional
// LLM-backed inference adapter and an always-available string-similarity
// fallback, and the resolver merges them under the no-invention policy.
package mapping

import (
	"context"

	"github.com/digifynow/autofill-agent/internal/types"
)

// Strategy proposes mapping candidates for a field schema against a
// customer data snapshot. Implementations must not fail the run: a
// strategy that cannot produce candidates returns an empty list.
type Strategy interface {
	// Name identifies the strategy in reports and logs.
	Name() string
	// Propose returns candidates for the given fields. Keys outside the
	// data map must never appear in the result.
	Propose(ctx context.Context, fields []types.FieldDefinition, data types.CustomerDataMap) ([]types.MappingCandidate, error)
}
