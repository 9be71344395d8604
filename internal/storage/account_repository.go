package storage

import (
	"context"
	"fmt"

	"github.com/finance-coach/internal/models"
)

// AccountRepository reads connected-account balances
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ListByUser returns every connected account of a user
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.ConnectedAccount, error) {
	query := `
		SELECT id, user_id, name, current_balance, updated_at
		FROM connected_accounts
		WHERE user_id = $1
		ORDER BY name
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.ConnectedAccount
	for rows.Next() {
		var a models.ConnectedAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.CurrentBalance, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
