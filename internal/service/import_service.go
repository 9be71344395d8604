package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finance-coach/internal/csvimport"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/storage"
	"github.com/finance-coach/internal/types"
)

// TransactionStore reads existing transactions and inserts imported ones
type TransactionStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
	BatchInsert(ctx context.Context, transactions []*models.Transaction) error
}

// ImportJobStore records import progress
type ImportJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.ImportJob, error)
	Start(ctx context.Context, id, userID string, totalRows int, format types.BankFormat, startedAt time.Time) error
	UpdateProgress(ctx context.Context, id string, p models.ImportProgress) error
	Complete(ctx context.Context, id string, p models.ImportProgress, errorLog []types.RowError, completedAt time.Time) error
}

// ImportConfig controls batching of inserts
type ImportConfig struct {
	BatchSize   int
	MaxErrorLog int
	ChunkPolicy types.ChunkFailurePolicy
}

// ImportService runs CSV statement imports
type ImportService struct {
	transactions TransactionStore
	jobs         ImportJobStore
	cfg          ImportConfig
	now          func() time.Time
}

// NewImportService creates a new import service
func NewImportService(transactions TransactionStore, jobs ImportJobStore, cfg ImportConfig) *ImportService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxErrorLog <= 0 {
		cfg.MaxErrorLog = 100
	}
	if cfg.ChunkPolicy == "" {
		cfg.ChunkPolicy = types.ChunkPolicyBestEffort
	}
	return &ImportService{
		transactions: transactions,
		jobs:         jobs,
		cfg:          cfg,
		now:          time.Now,
	}
}

// ImportInput is one uploaded statement
type ImportInput struct {
	UserID     string
	JobID      string
	CSVContent string
	Mapping    *csvimport.MappingConfig
}

// ImportResult summarizes an import. Errors is the number of error entries.
type ImportResult struct {
	Success    bool             `json:"success"`
	JobID      string           `json:"jobId"`
	Imported   int              `json:"imported"`
	Duplicates int              `json:"duplicates"`
	Errors     int              `json:"errors"`
	BankFormat types.BankFormat `json:"bankFormat"`
}

// ImportCSV parses, deduplicates and inserts a statement. Input-shape errors
// are returned before the job starts; once rows are processed the job always
// ends completed, with row and chunk failures in its error log.
func (s *ImportService) ImportCSV(ctx context.Context, in ImportInput) (*ImportResult, error) {
	headers, rows, err := csvimport.ParseCSV(in.CSVContent)
	if err != nil {
		return nil, apperrors.NewEmptyCSVError()
	}

	format, cols, missing := csvimport.ResolveColumns(headers, in.Mapping)
	if len(missing) > 0 {
		return nil, apperrors.NewMissingColumnsError(format, missing)
	}

	jobID := in.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	} else if err := uuid.Validate(jobID); err != nil {
		return nil, apperrors.NewInvalidParameterError("jobId", "must be a UUID")
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId":     in.UserID,
		"jobId":      jobID,
		"bankFormat": format,
	})

	existing, err := s.transactions.ListByUser(ctx, in.UserID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load existing transactions", err)
	}
	seen := make(csvimport.HashSet, len(existing))
	for _, tx := range existing {
		seen.Add(csvimport.DedupHash(tx.Date, tx.Amount, tx.Merchant))
	}

	if err := s.jobs.Create(ctx, &models.ImportJob{ID: jobID, UserID: in.UserID, Status: types.ImportStatusQueued}); err != nil {
		return nil, apperrors.NewDatabaseError("create import job", err)
	}
	if err := s.jobs.Start(ctx, jobID, in.UserID, len(rows), format, s.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: "IMPORT_JOB_NOT_FOUND", Message: fmt.Sprintf("import job not found: %s", jobID)}
		}
		return nil, apperrors.NewDatabaseError("start import job", err)
	}

	outcome := csvimport.NormalizeRows(rows, cols, seen)
	rowErrors := outcome.Errors
	progress := models.ImportProgress{
		ProcessedRows: len(outcome.Errors) + outcome.Duplicates,
		FailedRows:    len(outcome.Errors),
		DuplicateRows: outcome.Duplicates,
	}

	var stopErr error
	for start := 0; start < len(outcome.Rows); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(outcome.Rows) {
			end = len(outcome.Rows)
		}
		chunk := outcome.Rows[start:end]
		first, last := chunk[0].Line, chunk[len(chunk)-1].Line

		if stopErr == nil {
			stopErr = ctx.Err()
		}
		if stopErr != nil {
			rowErrors = append(rowErrors, types.RowError{
				Row:   first,
				Error: fmt.Sprintf("Rows %d-%d skipped: %v", first, last, stopErr),
			})
			progress.ProcessedRows += len(chunk)
			progress.FailedRows += len(chunk)
			continue
		}

		if err := s.transactions.BatchInsert(ctx, toTransactions(in.UserID, jobID, chunk)); err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"firstRow": first,
				"lastRow":  last,
			}).Warn("Import chunk insert failed")

			rowErrors = append(rowErrors, types.RowError{
				Row:   first,
				Error: fmt.Sprintf("Failed to insert rows %d-%d: %v", first, last, err),
			})
			progress.FailedRows += len(chunk)
			if s.cfg.ChunkPolicy == types.ChunkPolicyAbort {
				stopErr = errors.New("import aborted after a failed batch")
			}
		} else {
			progress.SuccessfulRows += len(chunk)
		}
		progress.ProcessedRows += len(chunk)

		if err := s.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
			logger.WithError(err).Warn("Import progress update failed")
		}
	}

	errorLog := rowErrors
	if len(errorLog) > s.cfg.MaxErrorLog {
		errorLog = errorLog[:s.cfg.MaxErrorLog]
	}
	// the job must reach completed even if the request was cancelled mid-import
	if err := s.jobs.Complete(context.WithoutCancel(ctx), jobID, progress, errorLog, s.now().UTC()); err != nil {
		return nil, apperrors.NewDatabaseError("complete import job", err)
	}

	logger.WithFields(map[string]interface{}{
		"imported":   progress.SuccessfulRows,
		"duplicates": progress.DuplicateRows,
		"errors":     len(rowErrors),
	}).Info("CSV import completed")

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}

	return &ImportResult{
		Success:    true,
		JobID:      jobID,
		Imported:   progress.SuccessfulRows,
		Duplicates: progress.DuplicateRows,
		Errors:     len(rowErrors),
		BankFormat: format,
	}, nil
}

// GetJob returns an import job owned by the user
func (s *ImportService) GetJob(ctx context.Context, userID, jobID string) (*models.ImportJob, error) {
	if err := uuid.Validate(jobID); err != nil {
		return nil, apperrors.NewInvalidParameterError("id", "must be a UUID")
	}
	job, err := s.jobs.GetByIDAndUser(ctx, jobID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: "IMPORT_JOB_NOT_FOUND", Message: fmt.Sprintf("import job not found: %s", jobID)}
		}
		return nil, apperrors.NewDatabaseError("get import job", err)
	}
	return job, nil
}

// toTransactions stores the description as merchant too, so a re-import of
// the same file hashes identically.
func toTransactions(userID, jobID string, rows []csvimport.Row) []*models.Transaction {
	txs := make([]*models.Transaction, len(rows))
	for i, r := range rows {
		id := jobID
		txs[i] = &models.Transaction{
			UserID:      userID,
			Date:        r.Date,
			Amount:      r.Amount,
			Description: r.Description,
			Merchant:    r.Description,
			Source:      types.SourceCSVImport,
			ImportJobID: &id,
		}
	}
	return txs
}
