package api

import (
	"net/http"

	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/service"
	"github.com/finance-coach/internal/simulation"
)

type simulateRequest struct {
	ScenarioID     string                `json:"scenarioId"`
	Parameters     simulation.Parameters `json:"parameters"`
	MonteCarloRuns int                   `json:"monteCarloRuns"`
}

// handleSimulate handles POST /digital-twin-simulate
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req simulateRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, apperrors.NewInvalidInputError("Invalid request body"))
		return
	}

	res, err := s.simulation.Simulate(r.Context(), service.SimulateInput{
		UserID:         userID,
		ScenarioID:     req.ScenarioID,
		Parameters:     req.Parameters,
		MonteCarloRuns: req.MonteCarloRuns,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if res.FromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	respondJSON(w, http.StatusOK, res.Response)
}
