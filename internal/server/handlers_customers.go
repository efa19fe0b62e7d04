package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/db"
	"github.com/digifynow/autofill-agent/internal/types"
)

// CustomerRequest is the request body for creating or updating a customer.
type CustomerRequest struct {
	Record types.CustomerRecord `json:"record"`
}

// UploadDocumentRequest is the request body for attaching a basis document
// to a customer. File carries the raw bytes base64-encoded.
type UploadDocumentRequest struct {
	Name string             `json:"name" validate:"required,min=1,max=200"`
	Kind types.TemplateKind `json:"kind" validate:"required"`
	File string             `json:"file" validate:"required"`
}

// handleCreateCustomer stores a new customer record for the acting broker
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.store.CreateCustomer(r.Context(), brokerID, &req.Record)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	customer, err := s.store.GetCustomer(r.Context(), id)
	if err != nil || customer == nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load created customer")
		return
	}

	s.jsonResponse(w, http.StatusCreated, customer)
}

// handleListCustomers lists the acting broker's customers
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}

	customers, err := s.store.ListCustomersByBroker(r.Context(), brokerID)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, customers)
}

// handleGetCustomer returns one customer record
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, customer)
}

// handleUpdateCustomer replaces a customer's record
func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.UpdateCustomer(r.Context(), id, brokerID, &req.Record); err != nil {
		s.errorFor(w, err)
		return
	}

	customer, err := s.store.GetCustomer(r.Context(), id)
	if err != nil || customer == nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load updated customer")
		return
	}

	s.jsonResponse(w, http.StatusOK, customer)
}

// handleDeleteCustomer removes a customer record
func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := s.store.DeleteCustomer(r.Context(), id, brokerID); err != nil {
		s.errorFor(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListCustomerRuns lists the mapping reports of a customer's runs
func (s *Server) handleListCustomerRuns(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	reports, err := s.store.ListReportsByCustomer(r.Context(), customer.ID)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, reports)
}

// handleListCustomerDocuments lists a customer's documents
func (s *Server) handleListCustomerDocuments(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	documents, err := s.store.ListCustomerDocuments(r.Context(), customer.ID)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, documents)
}

// handleUploadCustomerDocument attaches a document to a customer. Uploaded
// documents can serve as the basis of a later run.
func (s *Server) handleUploadCustomerDocument(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.ownedCustomer(w, r)
	if !ok {
		return
	}

	var req UploadDocumentRequest
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

	ref, err := s.files.Put(r.Context(), fmt.Sprintf("documents/%s%s", uuid.New(), kindExt(req.Kind)), raw)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	id, err := s.store.CreateCustomerDocument(r.Context(), &db.CustomerDocumentInput{
		CustomerID: customer.ID,
		BrokerID:   customer.BrokerID,
		Name:       req.Name,
		Kind:       req.Kind,
		FileRef:    ref,
	})
	if err != nil {
		s.errorFor(w, err)
		return
	}

	document, err := s.store.GetCustomerDocument(r.Context(), id)
	if err != nil || document == nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load created document")
		return
	}

	s.jsonResponse(w, http.StatusCreated, document)
}

// ownedCustomer loads the customer from the path and enforces broker ownership
func (s *Server) ownedCustomer(w http.ResponseWriter, r *http.Request) (*db.Customer, bool) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	customer, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return nil, false
	}
	if customer == nil || customer.BrokerID != brokerID {
		s.errorFor(w, &ErrNotFound{Resource: "customer", ID: id})
		return nil, false
	}
	return customer, true
}
