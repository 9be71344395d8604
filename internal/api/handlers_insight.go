package api

import (
	"net/http"

	apperrors "github.com/finance-coach/internal/errors"
)

// handleScenarioInsights handles POST /scenario-insights
func (s *Server) handleScenarioInsights(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req struct {
		ScenarioID string `json:"scenarioId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, apperrors.NewInvalidInputError("Invalid request body"))
		return
	}

	insights, err := s.insights.GenerateInsights(r.Context(), userID, req.ScenarioID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, insights)
}
