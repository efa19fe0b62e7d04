package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digifynow/autofill-agent/internal/types"
)

// CreateReport persists a new mapping report in its pending state
func (db *DB) CreateReport(ctx context.Context, report *types.MappingReport) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO mapping_reports (run_id, broker_id, template_id, basis_document_id, customer_id, correction_of, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID, report.BrokerID, report.TemplateID, report.BasisDocumentID,
		report.CustomerID, report.CorrectionOf, report.State, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create mapping report: %w", err)
	}
	return nil
}

// UpdateRunState records an intermediate run state transition
func (db *DB) UpdateRunState(ctx context.Context, runID uuid.UUID, state types.RunState) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE mapping_reports SET state = $1 WHERE run_id = $2 AND finalized_at IS NULL`,
		state, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found or already finalized", runID)
	}
	return nil
}

// FinalizeReport writes the finished report exactly once; a second
// finalization attempt fails rather than overwriting the audit record
func (db *DB) FinalizeReport(ctx context.Context, report *types.MappingReport) error {
	resolvedJSON, err := json.Marshal(report.Resolved)
	if err != nil {
		return fmt.Errorf("failed to marshal resolutions: %w", err)
	}
	missingJSON, err := json.Marshal(report.MissingFields)
	if err != nil {
		return fmt.Errorf("failed to marshal missing fields: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE mapping_reports
		 SET state = $1, strategy = $2, resolved = $3, missing_fields = $4,
		     generated_file_ref = $5, failure_kind = $6, failure_detail = $7, finalized_at = $8
		 WHERE run_id = $9 AND finalized_at IS NULL`,
		report.State, report.Strategy, resolvedJSON, missingJSON,
		report.GeneratedFileRef, report.FailureKind, report.FailureDetail, report.FinalizedAt,
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize mapping report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found or already finalized", report.RunID)
	}
	return nil
}

// Report retrieves the mapping report for a run, or nil when the run does
// not exist
func (db *DB) Report(ctx context.Context, runID uuid.UUID) (*types.MappingReport, error) {
	var r types.MappingReport
	var resolvedJSON, missingJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT run_id, broker_id, template_id, basis_document_id, customer_id, correction_of,
		        state, COALESCE(strategy, ''), resolved, missing_fields,
		        COALESCE(generated_file_ref, ''), COALESCE(failure_kind, ''), COALESCE(failure_detail, ''),
		        created_at, finalized_at
		 FROM mapping_reports WHERE run_id = $1`,
		runID,
	).Scan(&r.RunID, &r.BrokerID, &r.TemplateID, &r.BasisDocumentID, &r.CustomerID, &r.CorrectionOf,
		&r.State, &r.Strategy, &resolvedJSON, &missingJSON,
		&r.GeneratedFileRef, &r.FailureKind, &r.FailureDetail,
		&r.CreatedAt, &r.FinalizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mapping report: %w", err)
	}

	if len(resolvedJSON) > 0 {
		if err := json.Unmarshal(resolvedJSON, &r.Resolved); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resolutions: %w", err)
		}
	}
	if len(missingJSON) > 0 {
		if err := json.Unmarshal(missingJSON, &r.MissingFields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing fields: %w", err)
		}
	}
	return &r, nil
}

// ListReportsByCustomer returns all reports for a customer, newest first
func (db *DB) ListReportsByCustomer(ctx context.Context, customerID uuid.UUID) ([]types.MappingReport, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, broker_id, template_id, basis_document_id, customer_id, correction_of,
		        state, COALESCE(strategy, ''), resolved, missing_fields,
		        COALESCE(generated_file_ref, ''), COALESCE(failure_kind, ''), COALESCE(failure_detail, ''),
		        created_at, finalized_at
		 FROM mapping_reports WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping reports: %w", err)
	}
	defer rows.Close()

	var reports []types.MappingReport
	for rows.Next() {
		var r types.MappingReport
		var resolvedJSON, missingJSON []byte
		if err := rows.Scan(&r.RunID, &r.BrokerID, &r.TemplateID, &r.BasisDocumentID, &r.CustomerID, &r.CorrectionOf,
			&r.State, &r.Strategy, &resolvedJSON, &missingJSON,
			&r.GeneratedFileRef, &r.FailureKind, &r.FailureDetail,
			&r.CreatedAt, &r.FinalizedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping report: %w", err)
		}
		if len(resolvedJSON) > 0 {
			if err := json.Unmarshal(resolvedJSON, &r.Resolved); err != nil {
				return nil, fmt.Errorf("failed to unmarshal resolutions: %w", err)
			}
		}
		if len(missingJSON) > 0 {
			if err := json.Unmarshal(missingJSON, &r.MissingFields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal missing fields: %w", err)
			}
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
