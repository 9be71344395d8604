package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/finance-coach/internal/csvimport"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/service"
)

type importRequest struct {
	JobID         string                   `json:"jobId"`
	CSVContent    string                   `json:"csvContent"`
	MappingConfig *csvimport.MappingConfig `json:"mappingConfig"`
}

// handleImportCSV handles POST /process-csv-import
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if s.config.MaxCSVBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxCSVBytes)
	}

	var req importRequest
	if err := parseJSONBody(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "CSV upload is too large")
			return
		}
		respondServiceError(w, r, apperrors.NewInvalidInputError("Invalid request body"))
		return
	}

	res, err := s.imports.ImportCSV(r.Context(), service.ImportInput{
		UserID:     userID,
		JobID:      req.JobID,
		CSVContent: req.CSVContent,
		Mapping:    req.MappingConfig,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// handleGetImportJob handles GET /import-jobs/{id}
func (s *Server) handleGetImportJob(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	jobID := mux.Vars(r)["id"]

	job, err := s.imports.GetJob(r.Context(), userID, jobID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}
