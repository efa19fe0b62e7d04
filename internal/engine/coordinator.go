// Package engine provides the run coordinator: the single entry point that
// drives an autofill run from template schema to persisted mapping report.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/digifynow/autofill-agent/internal/docform"
	"github.com/digifynow/autofill-agent/internal/flatten"
	"github.com/digifynow/autofill-agent/internal/mapping"
	"github.com/digifynow/autofill-agent/internal/rendering"
	"github.com/digifynow/autofill-agent/internal/schema"
	"github.com/digifynow/autofill-agent/internal/types"
)

// ManualMapping is a broker-supplied field override for a correction run.
type ManualMapping struct {
	FieldID         string `json:"field_id" validate:"required"`
	CustomerDataKey string `json:"customer_data_key" validate:"required"`
}

// RunSpec describes one requested autofill run. Exactly one of TemplateID
// and BasisDocumentID must be set.
type RunSpec struct {
	BrokerID        uuid.UUID
	TemplateID      *uuid.UUID
	BasisDocumentID *uuid.UUID
	CustomerID      uuid.UUID
	// CorrectionOf links this run to a prior completed run whose manual
	// resolutions are layered into the candidate set.
	CorrectionOf   *uuid.UUID
	ManualMappings []ManualMapping
}

// Coordinator orchestrates runs and enforces the per-pair in-flight guard.
type Coordinator struct {
	templates TemplateSource
	customers CustomerSource
	reports   ReportStore
	files     FileStore
	notifier  Notifier
	inference mapping.Strategy

	mu       sync.Mutex
	inflight map[string]uuid.UUID
	handles  map[uuid.UUID]*runHandle
}

// Options configures optional coordinator behavior.
type Options struct {
	// Inference is the LLM-backed mapping strategy. Nil disables inference
	// and runs go fallback-only.
	Inference mapping.Strategy
	// Notifier is invoked after completed runs. Nil disables notification.
	Notifier Notifier
}

// NewCoordinator wires a coordinator over its collaborating stores.
func NewCoordinator(templates TemplateSource, customers CustomerSource, reports ReportStore, files FileStore, opts Options) *Coordinator {
	return &Coordinator{
		templates: templates,
		customers: customers,
		reports:   reports,
		files:     files,
		notifier:  opts.Notifier,
		inference: opts.Inference,
		inflight:  make(map[string]uuid.UUID),
		handles:   make(map[uuid.UUID]*runHandle),
	}
}

// runHandle tracks cancellation for one in-flight run.
type runHandle struct {
	mu        sync.Mutex
	cancelled bool
	rendering bool
}

// requestCancel marks the run cancelled unless rendering already started.
func (h *runHandle) requestCancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rendering {
		return false
	}
	h.cancelled = true
	return true
}

// beginRendering claims the rendering stage; after it returns true the run
// can no longer be cancelled.
func (h *runHandle) beginRendering() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return false
	}
	h.rendering = true
	return true
}

func (h *runHandle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// runJob carries one accepted run through execution.
type runJob struct {
	spec   RunSpec
	report *types.MappingReport
	prior  *types.MappingReport
	handle *runHandle
	pair   string
}

// Run executes an autofill run synchronously and returns the finalized
// report. Used by the CLI and by tests.
func (c *Coordinator) Run(ctx context.Context, spec RunSpec) (*types.MappingReport, error) {
	job, err := c.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, job), nil
}

// StartRun accepts a run, persists its pending report, and executes it in
// the background. The in-flight guard is checked synchronously so a
// conflicting request fails immediately with RunInProgressError.
func (c *Coordinator) StartRun(ctx context.Context, spec RunSpec) (*types.MappingReport, error) {
	job, err := c.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	// Detached from the request context: the run outlives the HTTP call.
	go c.execute(context.Background(), job)
	return job.report, nil
}

// Cancel marks a run cancelled. Only honored before rendering starts.
func (c *Coordinator) Cancel(runID uuid.UUID) error {
	c.mu.Lock()
	handle, ok := c.handles[runID]
	c.mu.Unlock()
	if !ok {
		return &RunNotFoundError{RunID: runID}
	}
	if !handle.requestCancel() {
		return fmt.Errorf("run %s is already rendering and can no longer be cancelled", runID)
	}
	return nil
}

// Report returns the mapping report for a run.
func (c *Coordinator) Report(ctx context.Context, runID uuid.UUID) (*types.MappingReport, error) {
	return c.reports.Report(ctx, runID)
}

// begin validates the run spec, acquires the per-pair guard, and persists the
// pending report.
func (c *Coordinator) begin(ctx context.Context, spec RunSpec) (*runJob, error) {
	if (spec.TemplateID == nil) == (spec.BasisDocumentID == nil) {
		return nil, fmt.Errorf("exactly one of template_id and basis_document_id must be set")
	}
	if spec.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("customer_id is required")
	}

	var prior *types.MappingReport
	if spec.CorrectionOf != nil {
		var err error
		prior, err = c.reports.Report(ctx, *spec.CorrectionOf)
		if err != nil {
			return nil, fmt.Errorf("failed to load correction basis run %s: %w", *spec.CorrectionOf, err)
		}
		if prior == nil {
			return nil, &RunNotFoundError{RunID: *spec.CorrectionOf}
		}
		if prior.State != types.RunCompleted {
			return nil, fmt.Errorf("correction basis run %s is %s, only completed runs can be corrected", *spec.CorrectionOf, prior.State)
		}
	}

	pair := pairKey(spec)
	handle := &runHandle{}

	c.mu.Lock()
	if _, busy := c.inflight[pair]; busy {
		c.mu.Unlock()
		return nil, &RunInProgressError{BasisRef: basisRef(spec), CustomerID: spec.CustomerID}
	}
	runID := uuid.New()
	c.inflight[pair] = runID
	c.handles[runID] = handle
	c.mu.Unlock()

	report := &types.MappingReport{
		RunID:           runID,
		BrokerID:        spec.BrokerID,
		TemplateID:      spec.TemplateID,
		BasisDocumentID: spec.BasisDocumentID,
		CustomerID:      spec.CustomerID,
		CorrectionOf:    spec.CorrectionOf,
		State:           types.RunPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.reports.CreateReport(ctx, report); err != nil {
		c.release(pair, runID)
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	return &runJob{spec: spec, report: report, prior: prior, handle: handle, pair: pair}, nil
}

// execute drives a run to a terminal state. The in-flight guard is released
// on every exit path.
func (c *Coordinator) execute(ctx context.Context, job *runJob) *types.MappingReport {
	defer c.release(job.pair, job.report.RunID)

	report := job.report
	log.Printf("Run %s: starting for customer %s", report.RunID, report.CustomerID)

	c.transition(ctx, report, types.RunResolving)

	target, err := c.fillTarget(ctx, job.spec)
	if err != nil {
		return c.fail(ctx, report, FailureSchema, err)
	}

	fields, err := schema.Normalize(target.Bytes, target.Kind, target.StoredSchema)
	if err != nil {
		return c.fail(ctx, report, FailureSchema, err)
	}

	record, err := c.customers.Customer(ctx, job.spec.CustomerID)
	if err != nil {
		return c.fail(ctx, report, FailureInternal, err)
	}
	data := flatten.Flatten(record)

	candidates, strategy := c.gatherCandidates(ctx, report.RunID, fields, data, target.DateLayout)
	candidates = append(manualCandidates(job, fields, target.DateLayout), candidates...)

	resolved := mapping.Resolve(fields, candidates, data)

	if job.handle.isCancelled() || !job.handle.beginRendering() {
		return c.cancelled(ctx, report)
	}

	c.transition(ctx, report, types.RunRendering)

	out, err := rendering.Render(target.Kind, target.Bytes, resolved)
	if err != nil {
		return c.fail(ctx, report, FailureRender, err)
	}

	ref, err := c.files.Put(ctx, outputName(report.RunID, target.Kind, target.Bytes), out)
	if err != nil {
		return c.fail(ctx, report, FailureRender, err)
	}

	now := time.Now().UTC()
	report.State = types.RunCompleted
	report.Strategy = strategy
	report.Resolved = resolved
	report.MissingFields = types.MissingList(resolved)
	report.GeneratedFileRef = ref
	report.FinalizedAt = &now
	if err := c.reports.FinalizeReport(ctx, report); err != nil {
		log.Printf("Warning: failed to finalize report for run %s: %v", report.RunID, err)
	}

	log.Printf("Run %s: completed, %d fields resolved, %d missing", report.RunID, len(resolved)-len(report.MissingFields), len(report.MissingFields))
	if c.notifier != nil {
		c.notifier.RunCompleted(ctx, report)
	}
	return report
}

// gatherCandidates runs the configured strategies in parallel and merges
// their proposals. Inference failure degrades to fallback-only candidates.
func (c *Coordinator) gatherCandidates(ctx context.Context, runID uuid.UUID, fields []types.FieldDefinition, data types.CustomerDataMap, dateLayout string) ([]types.MappingCandidate, string) {
	var inferred, matched []types.MappingCandidate
	var inferenceErr error

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matched, err = mapping.NewFallbackStrategy(dateLayout).Propose(gCtx, fields, data)
		return err
	})
	if c.inference != nil {
		g.Go(func() error {
			// Inference errors degrade the run, they never abort it.
			inferred, inferenceErr = c.inference.Propose(gCtx, fields, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("Warning: run %s: fallback matcher failed: %v", runID, err)
	}

	strategy := types.StrategyFallback
	if c.inference != nil && inferenceErr == nil {
		strategy = types.StrategyInference
	}
	if inferenceErr != nil {
		log.Printf("Run %s: inference degraded to fallback: %v", runID, inferenceErr)
	}

	return append(inferred, matched...), strategy
}

// manualCandidates layers broker overrides: overrides supplied with this
// run first, then manual resolutions carried over from the correction
// basis run.
func manualCandidates(job *runJob, fields []types.FieldDefinition, dateLayout string) []types.MappingCandidate {
	fieldTypes := make(map[string]types.DataType, len(fields))
	for _, f := range fields {
		fieldTypes[f.FieldID] = f.DataType
	}

	var out []types.MappingCandidate
	overridden := make(map[string]bool)
	for _, m := range job.spec.ManualMappings {
		candidate := types.MappingCandidate{
			FieldID:         m.FieldID,
			CustomerDataKey: m.CustomerDataKey,
			Confidence:      1,
			Source:          types.SourceManual,
		}
		if fieldTypes[m.FieldID] == types.DataTypeDate {
			candidate.Transform = mapping.DateTransform(dateLayout)
		}
		out = append(out, candidate)
		overridden[m.FieldID] = true
	}

	if job.prior != nil {
		for _, r := range job.prior.Resolved {
			if r.Source != types.SourceManual || r.Missing || overridden[r.FieldID] {
				continue
			}
			out = append(out, types.MappingCandidate{
				FieldID:         r.FieldID,
				CustomerDataKey: r.CustomerDataKey,
				Confidence:      1,
				Source:          types.SourceManual,
				Transform:       r.Transform,
			})
		}
	}
	return out
}

func (c *Coordinator) fillTarget(ctx context.Context, spec RunSpec) (*FillTarget, error) {
	if spec.TemplateID != nil {
		return c.templates.TemplateTarget(ctx, *spec.TemplateID)
	}
	return c.templates.BasisDocumentTarget(ctx, *spec.BasisDocumentID)
}

// transition records an intermediate state. Persistence here is best
// effort; the finalized report is the authoritative record.
func (c *Coordinator) transition(ctx context.Context, report *types.MappingReport, state types.RunState) {
	report.State = state
	if err := c.reports.UpdateRunState(ctx, report.RunID, state); err != nil {
		log.Printf("Warning: failed to persist state %s for run %s: %v", state, report.RunID, err)
	}
}

// fail finalizes a run as failed. A failed report never carries a
// generated file reference.
func (c *Coordinator) fail(ctx context.Context, report *types.MappingReport, kind string, cause error) *types.MappingReport {
	now := time.Now().UTC()
	report.State = types.RunFailed
	report.FailureKind = kind
	report.FailureDetail = cause.Error()
	report.GeneratedFileRef = ""
	report.FinalizedAt = &now
	if err := c.reports.FinalizeReport(ctx, report); err != nil {
		log.Printf("Warning: failed to finalize report for run %s: %v", report.RunID, err)
	}
	log.Printf("Run %s: failed (%s): %v", report.RunID, kind, cause)
	return report
}

func (c *Coordinator) cancelled(ctx context.Context, report *types.MappingReport) *types.MappingReport {
	now := time.Now().UTC()
	report.State = types.RunCancelled
	report.FinalizedAt = &now
	if err := c.reports.FinalizeReport(ctx, report); err != nil {
		log.Printf("Warning: failed to finalize report for run %s: %v", report.RunID, err)
	}
	log.Printf("Run %s: cancelled before rendering", report.RunID)
	return report
}

func (c *Coordinator) release(pair string, runID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, pair)
	delete(c.handles, runID)
}

func pairKey(spec RunSpec) string {
	return basisRef(spec) + "|" + spec.CustomerID.String()
}

func basisRef(spec RunSpec) string {
	if spec.TemplateID != nil {
		return "template:" + spec.TemplateID.String()
	}
	return "document:" + spec.BasisDocumentID.String()
}

// outputName derives the stored file name from the run and the template
// container format.
func outputName(runID uuid.UUID, kind types.TemplateKind, template []byte) string {
	switch {
	case kind == types.KindAcroForm:
		return runID.String() + ".pdf"
	case docform.IsZip(template):
		return runID.String() + ".docx"
	default:
		return runID.String() + ".txt"
	}
}
