package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/types"
)

// Template represents a reusable document template owned by a broker.
// Bytes live in the file store under FileRef; StoredSchema carries the
// broker's saved field annotations merged over discovery at run time.
type Template struct {
	ID           uuid.UUID               `json:"id"`
	BrokerID     uuid.UUID               `json:"broker_id"`
	Name         string                  `json:"name"`
	Kind         types.TemplateKind      `json:"kind"`
	FileRef      string                  `json:"file_ref"`
	StoredSchema []types.FieldDefinition `json:"stored_schema,omitempty"`
	// DateLayout is the Go date layout rendered date values should use.
	DateLayout string    `json:"date_layout,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TemplateInput holds the fields a broker supplies when creating or
// updating a template.
type TemplateInput struct {
	Name         string                  `json:"name"`
	Kind         types.TemplateKind      `json:"kind"`
	FileRef      string                  `json:"file_ref"`
	StoredSchema []types.FieldDefinition `json:"stored_schema,omitempty"`
	DateLayout   string                  `json:"date_layout,omitempty"`
}
