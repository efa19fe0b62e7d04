package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/types"
)

// FillTarget is a resolved fill target: the raw document bytes plus the
// metadata the normalizer and renderer need. Both templates and basis
// documents reduce to this shape.
type FillTarget struct {
	Bytes        []byte
	Kind         types.TemplateKind
	StoredSchema []types.FieldDefinition
	// DateLayout is the template's declared Go date layout for rendered
	// date values. Empty means the ISO default.
	DateLayout string
}

// TemplateSource supplies fill targets.
type TemplateSource interface {
	// TemplateTarget resolves a reusable template by ID.
	TemplateTarget(ctx context.Context, id uuid.UUID) (*FillTarget, error)
	// BasisDocumentTarget resolves a customer-associated document used as
	// the fill target instead of a template.
	BasisDocumentTarget(ctx context.Context, id uuid.UUID) (*FillTarget, error)
}

// CustomerSource supplies the structured customer record to flatten.
type CustomerSource interface {
	Customer(ctx context.Context, id uuid.UUID) (*types.CustomerRecord, error)
}

// ReportStore persists mapping reports across the run lifecycle.
type ReportStore interface {
	// CreateReport persists a new report in its pending state.
	CreateReport(ctx context.Context, report *types.MappingReport) error
	// UpdateRunState records an intermediate state transition.
	UpdateRunState(ctx context.Context, runID uuid.UUID, state types.RunState) error
	// FinalizeReport writes the finished report. Called exactly once per
	// run; the report is immutable afterwards.
	FinalizeReport(ctx context.Context, report *types.MappingReport) error
	// Report returns the report for a run, or nil when the run is unknown.
	Report(ctx context.Context, runID uuid.UUID) (*types.MappingReport, error)
}

// FileStore reads and writes document bytes by opaque reference.
type FileStore interface {
	Put(ctx context.Context, name string, data []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Notifier is invoked after a run completes. Implementations must not
// block the run; failures are theirs to log.
type Notifier interface {
	RunCompleted(ctx context.Context, report *types.MappingReport)
}
