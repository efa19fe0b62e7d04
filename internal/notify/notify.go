// Package notify delivers run-completion notifications. The production
// mailer lives outside this engine; the Log implementation records the
// event locally and is the default.
package notify

import (
	"context"
	"log"

	"github.com/digifynow/autofill-agent/internal/engine"
	"github.com/digifynow/autofill-agent/internal/types"
)

// Log writes completion notices to the process log.
type Log struct{}

// Multi fans a completion notice out to several notifiers in order.
type Multi []engine.Notifier

// RunCompleted delivers the report to every wrapped notifier.
func (m Multi) RunCompleted(ctx context.Context, report *types.MappingReport) {
	for _, n := range m {
		n.RunCompleted(ctx, report)
	}
}

// RunCompleted logs the finished run with its missing-field summary so a
// broker-facing channel can be attached later without touching the engine.
func (Log) RunCompleted(_ context.Context, report *types.MappingReport) {
	if len(report.MissingFields) > 0 {
		log.Printf("Run %s completed for customer %s: document %s ready, %d fields need manual entry: %v",
			report.RunID, report.CustomerID, report.GeneratedFileRef, len(report.MissingFields), report.MissingFields)
		return
	}
	log.Printf("Run %s completed for customer %s: document %s ready, all fields filled",
		report.RunID, report.CustomerID, report.GeneratedFileRef)
}
