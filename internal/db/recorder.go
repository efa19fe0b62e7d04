package db

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/digifynow/autofill-agent/internal/types"
)

// DocumentRecorder files the output of a completed run as a customer
// document in draft status, with the mapping report denormalized onto the
// row. It implements the engine's completion notifier.
type DocumentRecorder struct {
	db *DB
}

// NewDocumentRecorder creates a recorder over the database.
func NewDocumentRecorder(db *DB) *DocumentRecorder {
	return &DocumentRecorder{db: db}
}

// RunCompleted records the generated document. Recording failures are
// logged, not propagated: the run itself already succeeded and its report
// is persisted.
func (r *DocumentRecorder) RunCompleted(ctx context.Context, report *types.MappingReport) {
	if report.GeneratedFileRef == "" {
		return
	}

	runID := report.RunID
	input := &CustomerDocumentInput{
		CustomerID:    report.CustomerID,
		BrokerID:      report.BrokerID,
		Name:          r.documentName(ctx, report),
		Kind:          kindForRef(report.GeneratedFileRef),
		FileRef:       report.GeneratedFileRef,
		RunID:         &runID,
		MappingReport: report,
	}

	if _, err := r.db.CreateCustomerDocument(ctx, input); err != nil {
		log.Printf("Failed to record generated document for run %s: %v", report.RunID, err)
	}
}

// documentName derives a broker-facing name from the run's template.
func (r *DocumentRecorder) documentName(ctx context.Context, report *types.MappingReport) string {
	if report.TemplateID != nil {
		template, err := r.db.GetTemplate(ctx, *report.TemplateID)
		if err == nil && template != nil {
			return fmt.Sprintf("%s (ausgefüllt)", template.Name)
		}
	}
	return fmt.Sprintf("Generated document %s", report.RunID)
}

func kindForRef(ref string) types.TemplateKind {
	if path.Ext(ref) == ".pdf" {
		return types.KindAcroForm
	}
	return types.KindTaggedDoc
}
