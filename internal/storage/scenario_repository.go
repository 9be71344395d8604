package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finance-coach/internal/models"
)

// ScenarioRepository persists aggregated simulation results
type ScenarioRepository struct {
	db *PostgresDB
}

// NewScenarioRepository creates a new scenario repository
func NewScenarioRepository(db *PostgresDB) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// Upsert writes the scenario keyed by its id, minting an id when empty.
// Concurrent writers race and the last write wins.
func (r *ScenarioRepository) Upsert(ctx context.Context, s *models.TwinScenario) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	percentiles, err := json.Marshal(s.Percentiles)
	if err != nil {
		return fmt.Errorf("failed to marshal percentiles: %w", err)
	}
	timeline, err := json.Marshal(s.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	query := `
		INSERT INTO twin_scenarios (
			id, user_id, scenario_type, parameters, success_probability,
			percentiles, timeline, simulations, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			scenario_type = EXCLUDED.scenario_type,
			parameters = EXCLUDED.parameters,
			success_probability = EXCLUDED.success_probability,
			percentiles = EXCLUDED.percentiles,
			timeline = EXCLUDED.timeline,
			simulations = EXCLUDED.simulations,
			updated_at = EXCLUDED.updated_at
		WHERE twin_scenarios.user_id = EXCLUDED.user_id
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		s.ID,
		s.UserID,
		string(s.ScenarioType),
		params,
		s.SuccessProbability,
		percentiles,
		timeline,
		s.Simulations,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert twin scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// id exists but belongs to another user
		return ErrNotFound
	}

	return nil
}

// GetByIDAndUser returns a scenario owned by the user or ErrNotFound
func (r *ScenarioRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.TwinScenario, error) {
	query := `
		SELECT id, user_id, scenario_type, parameters, success_probability,
			   percentiles, timeline, simulations, created_at, updated_at
		FROM twin_scenarios
		WHERE id = $1 AND user_id = $2
	`

	var (
		s                             models.TwinScenario
		params, percentiles, timeline []byte
	)
	err := r.db.Pool().QueryRow(ctx, query, id, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.ScenarioType,
		&params,
		&s.SuccessProbability,
		&percentiles,
		&timeline,
		&s.Simulations,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get twin scenario: %w", err)
	}

	if err := json.Unmarshal(params, &s.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(percentiles, &s.Percentiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal percentiles: %w", err)
	}
	if err := json.Unmarshal(timeline, &s.Timeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}

	return &s, nil
}
