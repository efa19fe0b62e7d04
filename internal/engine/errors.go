package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// RunInProgressError rejects a second run for a (basis, customer) pair
// while one is still non-terminal. The caller gets it immediately; the
// request is never queued.
type RunInProgressError struct {
	BasisRef   string
	CustomerID uuid.UUID
}

func (e *RunInProgressError) Error() string {
	return fmt.Sprintf("a run for basis %s and customer %s is already in progress", e.BasisRef, e.CustomerID)
}

// RunNotFoundError means no run exists under the given ID.
type RunNotFoundError struct {
	RunID uuid.UUID
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// Failure kinds recorded on a failed report.
const (
	FailureSchema   = "schema_error"
	FailureRender   = "render_error"
	FailureInternal = "internal_error"
)
