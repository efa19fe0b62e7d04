package server

import (
	"fmt"
	"net/http"
	"path"

	"github.com/digifynow/autofill-agent/internal/db"
)

// handleGetDocument returns one customer document's metadata
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	document, ok := s.ownedDocument(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, document)
}

// handleGetDocumentFile streams the document bytes
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	document, ok := s.ownedDocument(w, r)
	if !ok {
		return
	}

	data, err := s.files.Get(r.Context(), document.FileRef)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(document.FileRef))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(document.FileRef)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		// Response already started
		return
	}
}

// handleMarkDocumentSent transitions a draft document to sent. Delivery
// itself happens outside the engine.
func (s *Server) handleMarkDocumentSent(w http.ResponseWriter, r *http.Request) {
	document, ok := s.ownedDocument(w, r)
	if !ok {
		return
	}

	if document.Status != db.DocumentDraft {
		s.errorResponse(w, http.StatusConflict, fmt.Sprintf("document is already %s", document.Status))
		return
	}

	if err := s.store.MarkDocumentSent(r.Context(), document.ID, document.BrokerID); err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Document marked sent"})
}

// ownedDocument loads the document from the path and enforces broker
// ownership
func (s *Server) ownedDocument(w http.ResponseWriter, r *http.Request) (*db.CustomerDocument, bool) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	document, err := s.store.GetCustomerDocument(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return nil, false
	}
	if document == nil || document.BrokerID != brokerID {
		s.errorFor(w, &ErrNotFound{Resource: "document", ID: id})
		return nil, false
	}
	return document, true
}
