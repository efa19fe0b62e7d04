package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/digifynow/autofill-agent/internal/engine"
	"github.com/digifynow/autofill-agent/internal/types"
)

// StartRunRequest is the request body for starting an autofill run.
// Exactly one of template_id and basis_document_id must be set.
type StartRunRequest struct {
	TemplateID      *uuid.UUID             `json:"template_id,omitempty"`
	BasisDocumentID *uuid.UUID             `json:"basis_document_id,omitempty"`
	CustomerID      uuid.UUID              `json:"customer_id" validate:"required"`
	CorrectionOf    *uuid.UUID             `json:"correction_of,omitempty"`
	ManualMappings  []engine.ManualMapping `json:"manual_mappings,omitempty" validate:"dive"`
}

// handleStartRun begins an autofill run for the acting broker. The run
// executes in the background; the pending report is returned immediately.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return
	}

	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	if err := s.authorizeRunBasis(w, r, brokerID, &req); err != nil {
		return
	}

	report, err := s.runner.StartRun(r.Context(), engine.RunSpec{
		BrokerID:        brokerID,
		TemplateID:      req.TemplateID,
		BasisDocumentID: req.BasisDocumentID,
		CustomerID:      req.CustomerID,
		CorrectionOf:    req.CorrectionOf,
		ManualMappings:  req.ManualMappings,
	})
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, report)
}

// authorizeRunBasis verifies the basis and customer referenced by a run
// request belong to the acting broker. Writes the error response itself.
func (s *Server) authorizeRunBasis(w http.ResponseWriter, r *http.Request, brokerID uuid.UUID, req *StartRunRequest) error {
	customer, err := s.store.GetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		s.errorFor(w, err)
		return err
	}
	if customer == nil || customer.BrokerID != brokerID {
		notFound := &ErrNotFound{Resource: "customer", ID: req.CustomerID}
		s.errorFor(w, notFound)
		return notFound
	}

	if req.TemplateID != nil {
		template, err := s.store.GetTemplate(r.Context(), *req.TemplateID)
		if err != nil {
			s.errorFor(w, err)
			return err
		}
		if template == nil || template.BrokerID != brokerID {
			notFound := &ErrNotFound{Resource: "template", ID: *req.TemplateID}
			s.errorFor(w, notFound)
			return notFound
		}
	}

	if req.BasisDocumentID != nil {
		document, err := s.store.GetCustomerDocument(r.Context(), *req.BasisDocumentID)
		if err != nil {
			s.errorFor(w, err)
			return err
		}
		if document == nil || document.BrokerID != brokerID {
			notFound := &ErrNotFound{Resource: "document", ID: *req.BasisDocumentID}
			s.errorFor(w, notFound)
			return notFound
		}
	}

	return nil
}

// handleGetRun returns the mapping report of a run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.ownedReport(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

// handleGetRunDocument streams the generated document of a completed run
func (s *Server) handleGetRunDocument(w http.ResponseWriter, r *http.Request) {
	report, ok := s.ownedReport(w, r)
	if !ok {
		return
	}

	if report.State != types.RunCompleted || report.GeneratedFileRef == "" {
		s.errorResponse(w, http.StatusConflict, fmt.Sprintf("run is %s, no document available", report.State))
		return
	}

	data, err := s.files.Get(r.Context(), report.GeneratedFileRef)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(report.GeneratedFileRef))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(report.GeneratedFileRef)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		// Response already started
		return
	}
}

// handleCancelRun requests cooperative cancellation of an in-flight run
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.ownedReport(w, r)
	if !ok {
		return
	}

	if err := s.runner.Cancel(report.RunID); err != nil {
		s.errorFor(w, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"message": "Cancellation requested"})
}

// ownedReport loads the run's report from the path and enforces broker
// ownership
func (s *Server) ownedReport(w http.ResponseWriter, r *http.Request) (*types.MappingReport, bool) {
	brokerID, ok := s.brokerID(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	report, err := s.store.Report(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return nil, false
	}
	if report == nil || report.BrokerID != brokerID {
		s.errorFor(w, &engine.RunNotFoundError{RunID: id})
		return nil, false
	}
	return report, true
}

func contentTypeFor(ref string) string {
	switch path.Ext(ref) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
