package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/db"
	"github.com/digifynow/autofill-agent/internal/schema"
	"github.com/digifynow/autofill-agent/internal/types"
)

// CreateTemplateRequest is the request body for template upload.
// File carries the raw template bytes base64-encoded.
type CreateTemplateRequest struct {
	Name         string                  `json:"name" validate:"required,min=1,max=200"`
	Kind         types.TemplateKind      `json:"kind" validate:"required"`
	File         string                  `json:"file" validate:"required"`
	DateLayout   string                  `json:"date_layout,omitempty"`
	StoredSchema []types.FieldDefinition `json:"stored_schema,omitempty"`
}

// UpdateSchemaRequest is the request body for saving field annotations.
type UpdateSchemaRequest struct {
	StoredSchema []types.FieldDefinition `json:"stored_schema" validate:"required,min=1"`
	DateLayout   string                  `json:"date_layout,omitempty"`
}

// TemplateSchemaResponse is the normalized schema of a template's current bytes.
type TemplateSchemaResponse struct {
	TemplateID uuid.UUID               `json:"template_id"`
	Kind       types.TemplateKind      `json:"kind"`
	Fields     []types.FieldDefinition `json:"fields"`
}

func validKind(kind types.TemplateKind) bool {
	return kind == types.KindTaggedDoc || kind == types.KindAcroForm
}

// handleCreateTemplate stores a new template: bytes into the file store,
// metadata into the database.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}
	if !validKind(req.Kind) {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown template kind: %s", req.Kind))
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.File)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "file must be base64 encoded")
		return
	}
	if len(raw) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "file is empty")
		return
	}

	// Reject templates whose bytes do not parse before anything is stored
	if _, err := schema.Normalize(raw, req.Kind, req.StoredSchema); err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ref, err := s.files.Put(r.Context(), fmt.Sprintf("templates/%s%s", uuid.New(), kindExt(req.Kind)), raw)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	id, err := s.store.CreateTemplate(r.Context(), brokerID, &db.TemplateInput{
		Name:         req.Name,
		Kind:         req.Kind,
		FileRef:      ref,
		StoredSchema: req.StoredSchema,
		DateLayout:   req.DateLayout,
	})
	if err != nil {
		s.errorFor(w, err)
		return
	}

	template, err := s.store.GetTemplate(r.Context(), id)
	if err != nil || template == nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load created template")
		return
	}

	s.jsonResponse(w, http.StatusCreated, template)
}

// handleListTemplates lists the acting broker's templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}

	templates, err := s.store.ListTemplatesByBroker(r.Context(), brokerID)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, templates)
}

// handleGetTemplate returns one template's metadata
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, template)
}

// handleGetTemplateSchema normalizes the template's current bytes and
// returns the merged field schema.
func (s *Server) handleGetTemplateSchema(w http.ResponseWriter, r *http.Request) {
	template, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}

	raw, err := s.files.Get(r.Context(), template.FileRef)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	fields, err := schema.Normalize(raw, template.Kind, template.StoredSchema)
	if err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, TemplateSchemaResponse{
		TemplateID: template.ID,
		Kind:       template.Kind,
		Fields:     fields,
	})
}

// handleUpdateTemplateSchema saves broker field annotations for a template
func (s *Server) handleUpdateTemplateSchema(w http.ResponseWriter, r *http.Request) {
	template, ok := s.ownedTemplate(w, r)
	if !ok {
		return
	}

	var req UpdateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	schemaJSON, err := json.Marshal(req.StoredSchema)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid stored schema")
		return
	}

	if err := s.store.UpdateTemplateSchema(r.Context(), template.ID, schemaJSON, req.DateLayout); err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Schema updated"})
}

// handleDeleteTemplate removes a template
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.store.DeleteTemplate(r.Context(), id, brokerID); err != nil {
		s.errorFor(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedTemplate loads the template from the path and enforces broker
// ownership. Cross-broker lookups report not found rather than forbidden
// so template IDs do not leak.
func (s *Server) ownedTemplate(w http.ResponseWriter, r *http.Request) (*db.Template, bool) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	template, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return nil, false
	}
	if template == nil || template.BrokerID != brokerID {
		s.errorFor(w, &ErrNotFound{Resource: "template", ID: id})
		return nil, false
	}
	return template, true
}

func kindExt(kind types.TemplateKind) string {
	if kind == types.KindAcroForm {
		return ".pdf"
	}
	return ".docx"
}
