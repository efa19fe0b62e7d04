package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/engine"
	"github.com/digifynow/autofill-agent/internal/types"
)

// TargetSource adapts the database plus the file store into the fetch
// interfaces the run coordinator consumes.
type TargetSource struct {
	db    *DB
	files engine.FileStore
}

// NewTargetSource wires a TargetSource.
func NewTargetSource(db *DB, files engine.FileStore) *TargetSource {
	return &TargetSource{db: db, files: files}
}

// TemplateTarget resolves a reusable template into a fill target.
func (s *TargetSource) TemplateTarget(ctx context.Context, id uuid.UUID) (*engine.FillTarget, error) {
	template, err := s.db.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, fmt.Errorf("template %s not found", id)
	}

	data, err := s.files.Get(ctx, template.FileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load template bytes: %w", err)
	}
	return &engine.FillTarget{
		Bytes:        data,
		Kind:         template.Kind,
		StoredSchema: template.StoredSchema,
		DateLayout:   template.DateLayout,
	}, nil
}

// BasisDocumentTarget resolves a customer document into a fill target.
// Basis documents carry no stored schema; fields come from discovery.
func (s *TargetSource) BasisDocumentTarget(ctx context.Context, id uuid.UUID) (*engine.FillTarget, error) {
	document, err := s.db.GetCustomerDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fmt.Errorf("document %s not found", id)
	}

	data, err := s.files.Get(ctx, document.FileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load document bytes: %w", err)
	}
	return &engine.FillTarget{
		Bytes: data,
		Kind:  document.Kind,
	}, nil
}

// Customer resolves the structured record for flattening.
func (s *TargetSource) Customer(ctx context.Context, id uuid.UUID) (*types.CustomerRecord, error) {
	customer, err := s.db.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s not found", id)
	}
	return &customer.Record, nil
}
