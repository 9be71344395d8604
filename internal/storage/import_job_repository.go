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
	"github.com/finance-coach/internal/types"
)

// ImportJobRepository tracks CSV import progress
type ImportJobRepository struct {
	db *PostgresDB
}

// NewImportJobRepository creates a new import job repository
func NewImportJobRepository(db *PostgresDB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create inserts a queued job. An existing job with the same id is left alone.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = types.ImportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO import_jobs (id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, job.ID, job.UserID, string(job.Status), job.CreatedAt); err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// GetByIDAndUser returns a job owned by the user or ErrNotFound
func (r *ImportJobRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.ImportJob, error) {
	query := `
		SELECT id, user_id, status, bank_format, total_rows, processed_rows, successful_rows,
			   failed_rows, duplicate_rows, error_log, started_at, completed_at, created_at
		FROM import_jobs
		WHERE id = $1 AND user_id = $2
	`

	var (
		job        models.ImportJob
		bankFormat *string
		errorLog   []byte
	)
	err := r.db.Pool().QueryRow(ctx, query, id, userID).Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&bankFormat,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SuccessfulRows,
		&job.FailedRows,
		&job.DuplicateRows,
		&errorLog,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	if bankFormat != nil {
		f := types.BankFormat(*bankFormat)
		job.BankFormat = &f
	}
	if err := json.Unmarshal(errorLog, &job.ErrorLog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error log: %w", err)
	}

	return &job, nil
}

// Start moves a job owned by userID to processing and records its size and
// detected format. It returns ErrNotFound when the user does not own the job.
func (r *ImportJobRepository) Start(ctx context.Context, id, userID string, totalRows int, format types.BankFormat, startedAt time.Time) error {
	query := `
		UPDATE import_jobs
		SET status = $3, total_rows = $4, bank_format = $5, started_at = $6
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, userID, string(types.ImportStatusProcessing), totalRows, string(format), startedAt)
	if err != nil {
		return fmt.Errorf("failed to start import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProgress overwrites the running counters
func (r *ImportJobRepository) UpdateProgress(ctx context.Context, id string, p models.ImportProgress) error {
	query := `
		UPDATE import_jobs
		SET processed_rows = $2, successful_rows = $3, failed_rows = $4, duplicate_rows = $5
		WHERE id = $1
	`

	_, err := r.db.Pool().Exec(ctx, query, id, p.ProcessedRows, p.SuccessfulRows, p.FailedRows, p.DuplicateRows)
	if err != nil {
		return fmt.Errorf("failed to update import progress: %w", err)
	}
	return nil
}

// Complete writes the final counters and error log and marks the job completed
func (r *ImportJobRepository) Complete(ctx context.Context, id string, p models.ImportProgress, errorLog []types.RowError, completedAt time.Time) error {
	if errorLog == nil {
		errorLog = []types.RowError{}
	}
	logJSON, err := json.Marshal(errorLog)
	if err != nil {
		return fmt.Errorf("failed to marshal error log: %w", err)
	}

	query := `
		UPDATE import_jobs
		SET status = $2, processed_rows = $3, successful_rows = $4, failed_rows = $5,
			duplicate_rows = $6, error_log = $7, completed_at = $8
		WHERE id = $1
	`

	_, err = r.db.Pool().Exec(ctx, query,
		id,
		string(types.ImportStatusCompleted),
		p.ProcessedRows,
		p.SuccessfulRows,
		p.FailedRows,
		p.DuplicateRows,
		logJSON,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete import job: %w", err)
	}
	return nil
}
