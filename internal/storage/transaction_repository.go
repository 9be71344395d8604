package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finance-coach/internal/models"
)

const dateLayout = "2006-01-02"

// TransactionRepository handles transaction persistence in Postgres
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CashFlow is the sum of inflows and outflows over a window. Outflow is
// reported as a positive number.
type CashFlow struct {
	Inflow  float64
	Outflow float64
}

const insertTransactionSQL = `
	INSERT INTO transactions (
		id, user_id, date, amount, description, merchant, category, source, import_job_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// BatchInsert inserts all transactions in one database transaction. Either
// every row is written or none is.
func (r *TransactionRepository) BatchInsert(ctx context.Context, transactions []*models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, tx := range transactions {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		day, err := time.Parse(dateLayout, tx.Date)
		if err != nil {
			return fmt.Errorf("invalid transaction date %q: %w", tx.Date, err)
		}

		batch.Queue(insertTransactionSQL,
			tx.ID,
			tx.UserID,
			day,
			tx.Amount,
			tx.Description,
			tx.Merchant,
			tx.Category,
			string(tx.Source),
			tx.ImportJobID,
			tx.CreatedAt,
		)
	}

	err := pgx.BeginFunc(ctx, r.db.Pool(), func(dbTx pgx.Tx) error {
		results := dbTx.SendBatch(ctx, batch)
		for i := 0; i < len(transactions); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to batch insert transactions: %w", err)
	}

	return nil
}

// ListByUser returns every transaction of a user, newest first
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), amount, description, merchant,
			   category, source, import_job_id::text, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Date,
			&tx.Amount,
			&tx.Description,
			&tx.Merchant,
			&tx.Category,
			&tx.Source,
			&tx.ImportJobID,
			&tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// CashFlowSince sums a user's positive and negative amounts dated on or after since
func (r *TransactionRepository) CashFlowSince(ctx context.Context, userID string, since time.Time) (CashFlow, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0)::float8,
			COALESCE(-SUM(amount) FILTER (WHERE amount < 0), 0)::float8
		FROM transactions
		WHERE user_id = $1 AND date >= $2
	`

	var cf CashFlow
	if err := r.db.Pool().QueryRow(ctx, query, userID, since).Scan(&cf.Inflow, &cf.Outflow); err != nil {
		return CashFlow{}, fmt.Errorf("failed to sum cash flow: %w", err)
	}
	return cf, nil
}
