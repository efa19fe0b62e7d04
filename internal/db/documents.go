package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/digifynow/autofill-agent/internal/types"
)

// Document status lifecycle. A generated document starts as a draft; the
// broker sends it out-of-band and marks it sent.
const (
	DocumentDraft = "draft"
	DocumentSent  = "sent"
)

// CustomerDocument represents a customer-associated document: either an
// upload or the output of a completed run. It can serve as the basis for
// a later run. The mapping report of the producing run is denormalized
// onto the row for the broker UI.
type CustomerDocument struct {
	ID            uuid.UUID            `json:"id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	BrokerID      uuid.UUID            `json:"broker_id"`
	Name          string               `json:"name"`
	Kind          types.TemplateKind   `json:"kind"`
	FileRef       string               `json:"file_ref"`
	Status        string               `json:"status"`
	RunID         *uuid.UUID           `json:"run_id,omitempty"`
	MappingReport *types.MappingReport `json:"mapping_report,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// CustomerDocumentInput holds the fields for creating a document row.
type CustomerDocumentInput struct {
	CustomerID    uuid.UUID
	BrokerID      uuid.UUID
	Name          string
	Kind          types.TemplateKind
	FileRef       string
	RunID         *uuid.UUID
	MappingReport *types.MappingReport
}

// CreateCustomerDocument inserts a document row in draft status
func (db *DB) CreateCustomerDocument(ctx context.Context, input *CustomerDocumentInput) (uuid.UUID, error) {
	var reportJSON []byte
	if input.MappingReport != nil {
		var err error
		reportJSON, err = json.Marshal(input.MappingReport)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to marshal mapping report: %w", err)
		}
	}

	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO customer_documents (customer_id, broker_id, name, kind, file_ref, status, run_id, mapping_report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		input.CustomerID, input.BrokerID, input.Name, input.Kind, input.FileRef,
		DocumentDraft, input.RunID, reportJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create customer document: %w", err)
	}
	return id, nil
}

// GetCustomerDocument retrieves a document by ID, or nil when it does not exist
func (db *DB) GetCustomerDocument(ctx context.Context, id uuid.UUID) (*CustomerDocument, error) {
	var d CustomerDocument
	var reportJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, customer_id, broker_id, name, kind, file_ref, status, run_id, mapping_report, created_at
		 FROM customer_documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.CustomerID, &d.BrokerID, &d.Name, &d.Kind, &d.FileRef, &d.Status, &d.RunID, &reportJSON, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer document: %w", err)
	}

	if len(reportJSON) > 0 {
		if err := json.Unmarshal(reportJSON, &d.MappingReport); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mapping report: %w", err)
		}
	}
	return &d, nil
}

// ListCustomerDocuments returns a customer's documents, newest first
func (db *DB) ListCustomerDocuments(ctx context.Context, customerID uuid.UUID) ([]CustomerDocument, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, customer_id, broker_id, name, kind, file_ref, status, run_id, mapping_report, created_at
		 FROM customer_documents WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer documents: %w", err)
	}
	defer rows.Close()

	var documents []CustomerDocument
	for rows.Next() {
		var d CustomerDocument
		var reportJSON []byte
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.BrokerID, &d.Name, &d.Kind, &d.FileRef, &d.Status, &d.RunID, &reportJSON, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer document: %w", err)
		}
		if len(reportJSON) > 0 {
			if err := json.Unmarshal(reportJSON, &d.MappingReport); err != nil {
				return nil, fmt.Errorf("failed to unmarshal mapping report: %w", err)
			}
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

// MarkDocumentSent transitions a draft document to sent
func (db *DB) MarkDocumentSent(ctx context.Context, id, brokerID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE customer_documents SET status = $1 WHERE id = $2 AND broker_id = $3 AND status = $4`,
		DocumentSent, id, brokerID, DocumentDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to mark document sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s not found or not a draft", id)
	}
	return nil
}
