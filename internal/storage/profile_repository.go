package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finance-coach/internal/models"
)

// ProfileRepository handles financial profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID returns the stored profile or ErrNotFound
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.FinancialProfile, error) {
	query := `
		SELECT user_id, net_worth, savings, annual_income, annual_expenses, age, created_at, updated_at
		FROM financial_profiles
		WHERE user_id = $1
	`

	var p models.FinancialProfile
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.NetWorth,
		&p.Savings,
		&p.AnnualIncome,
		&p.AnnualExpenses,
		&p.Age,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get financial profile: %w", err)
	}

	return &p, nil
}

// Upsert inserts the profile or replaces the stored figures
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.FinancialProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO financial_profiles (user_id, net_worth, savings, annual_income, annual_expenses, age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			net_worth = EXCLUDED.net_worth,
			savings = EXCLUDED.savings,
			annual_income = EXCLUDED.annual_income,
			annual_expenses = EXCLUDED.annual_expenses,
			age = EXCLUDED.age,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		p.UserID,
		p.NetWorth,
		p.Savings,
		p.AnnualIncome,
		p.AnnualExpenses,
		p.Age,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert financial profile: %w", err)
	}

	return nil
}
