package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finance-coach/internal/adapter"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/storage"
	"github.com/finance-coach/internal/types"
)

// ScenarioReader loads persisted scenarios
type ScenarioReader interface {
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.TwinScenario, error)
}

// InsightBudget limits how many gateway calls a user may make
type InsightBudget interface {
	TryConsume(ctx context.Context, userID string) (allowed bool, retryAfter time.Duration, err error)
}

// InsightService turns a stored projection into a short written summary
type InsightService struct {
	scenarios ScenarioReader
	completer adapter.Completer
	budget    InsightBudget
}

// NewInsightService creates a new insight service. A nil budget means no limit.
func NewInsightService(scenarios ScenarioReader, completer adapter.Completer, budget InsightBudget) *InsightService {
	return &InsightService{scenarios: scenarios, completer: completer, budget: budget}
}

// ScenarioInsights is the model's structured summary
type ScenarioInsights struct {
	ScenarioID  string   `json:"scenarioId"`
	Headline    string   `json:"headline"`
	Risks       []string `json:"risks"`
	Suggestions []string `json:"suggestions"`
}

const insightSystemPrompt = "You are a careful personal finance coach. Summarize Monte Carlo net worth projections " +
	"in plain language. Never promise returns. Keep every item under 25 words."

var insightTool = &adapter.ToolSchema{
	Name:        "scenario_insights",
	Description: "Structured summary of a net worth projection",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"headline": map[string]interface{}{"type": "string"},
			"risks": map[string]interface{}{
				"type":     "array",
				"items":    map[string]interface{}{"type": "string"},
				"maxItems": 3,
			},
			"suggestions": map[string]interface{}{
				"type":     "array",
				"items":    map[string]interface{}{"type": "string"},
				"maxItems": 3,
			},
		},
		"required": []string{"headline", "risks", "suggestions"},
	},
}

// GenerateInsights summarizes a scenario owned by the user. Gateway rate
// limit and quota errors are returned unchanged.
func (s *InsightService) GenerateInsights(ctx context.Context, userID, scenarioID string) (*ScenarioInsights, error) {
	if scenarioID == "" {
		return nil, apperrors.NewInvalidParameterError("scenarioId", "is required")
	}
	if err := uuid.Validate(scenarioID); err != nil {
		return nil, apperrors.NewInvalidParameterError("scenarioId", "must be a UUID")
	}

	scenario, err := s.scenarios.GetByIDAndUser(ctx, scenarioID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: "SCENARIO_NOT_FOUND", Message: fmt.Sprintf("scenario not found: %s", scenarioID)}
		}
		return nil, apperrors.NewDatabaseError("load scenario", err)
	}

	if s.budget != nil {
		allowed, retryAfter, err := s.budget.TryConsume(ctx, userID)
		if err != nil {
			return nil, apperrors.NewCacheError("check insight budget", err)
		}
		if !allowed {
			rlErr := apperrors.NewRateLimitError()
			rlErr.Message = "insight limit reached, please try again later"
			rlErr.Details = map[string]interface{}{"retryAfterSeconds": int(math.Ceil(retryAfter.Seconds()))}
			return nil, rlErr
		}
	}

	resp, err := s.completer.Complete(ctx, adapter.CompletionRequest{
		SystemPrompt: insightSystemPrompt,
		UserPrompt:   describeScenario(scenario),
		Tool:         insightTool,
	})
	if err != nil {
		return nil, err
	}

	var out ScenarioInsights
	if err := json.Unmarshal(resp.ToolArguments, &out); err != nil {
		return nil, apperrors.NewProviderError("ai-gateway", fmt.Errorf("invalid insight payload: %w", err))
	}
	if out.Risks == nil {
		out.Risks = []string{}
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	out.ScenarioID = scenario.ID
	return &out, nil
}

func describeScenario(s *models.TwinScenario) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario type: %s\n", s.ScenarioType)
	fmt.Fprintf(&b, "Simulations: %d\n", s.Simulations)
	fmt.Fprintf(&b, "Probability of reaching target: %.1f%%\n", s.SuccessProbability)
	fmt.Fprintf(&b, "Final net worth p10/p50/p90: %.0f / %.0f / %.0f\n",
		s.Percentiles.P10, s.Percentiles.P50, s.Percentiles.P90)

	if params, err := json.Marshal(s.Parameters); err == nil {
		fmt.Fprintf(&b, "Parameters: %s\n", params)
	}
	if n := len(s.Timeline); n > 0 {
		first, last := s.Timeline[0], s.Timeline[n-1]
		fmt.Fprintf(&b, "Median net worth year %d: %.0f, year %d: %.0f\n", first.Year, first.Median, last.Year, last.Median)
	}
	return b.String()
}
