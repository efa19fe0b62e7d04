package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateTemplate inserts a template and returns its ID
func (db *DB) CreateTemplate(ctx context.Context, brokerID uuid.UUID, input *TemplateInput) (uuid.UUID, error) {
	schemaJSON, err := json.Marshal(input.StoredSchema)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal stored schema: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO templates (broker_id, name, kind, file_ref, stored_schema, date_layout)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		brokerID, input.Name, input.Kind, input.FileRef, schemaJSON, input.DateLayout,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create template: %w", err)
	}
	return id, nil
}

// GetTemplate retrieves a template by ID, or nil when it does not exist
func (db *DB) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var t Template
	var schemaJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, broker_id, name, kind, file_ref, stored_schema, date_layout, created_at, updated_at
		 FROM templates WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.BrokerID, &t.Name, &t.Kind, &t.FileRef, &schemaJSON, &t.DateLayout, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &t.StoredSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored schema: %w", err)
		}
	}
	return &t, nil
}

// ListTemplatesByBroker returns all templates a broker owns, newest first
func (db *DB) ListTemplatesByBroker(ctx context.Context, brokerID uuid.UUID) ([]Template, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, broker_id, name, kind, file_ref, stored_schema, date_layout, created_at, updated_at
		 FROM templates WHERE broker_id = $1
		 ORDER BY created_at DESC`,
		brokerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		var schemaJSON []byte
		if err := rows.Scan(&t.ID, &t.BrokerID, &t.Name, &t.Kind, &t.FileRef, &schemaJSON, &t.DateLayout, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if len(schemaJSON) > 0 {
			if err := json.Unmarshal(schemaJSON, &t.StoredSchema); err != nil {
				return nil, fmt.Errorf("failed to unmarshal stored schema: %w", err)
			}
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplateSchema saves the broker's field annotations for a template
func (db *DB) UpdateTemplateSchema(ctx context.Context, id uuid.UUID, schema []byte, dateLayout string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE templates SET stored_schema = $1, date_layout = $2, updated_at = NOW() WHERE id = $3`,
		schema, dateLayout, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update template schema: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template owned by the broker
func (db *DB) DeleteTemplate(ctx context.Context, id, brokerID uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM templates WHERE id = $1 AND broker_id = $2`,
		id, brokerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}
