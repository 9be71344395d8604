package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finance-coach/internal/csvimport"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/types"
)

const chaseStatement = `Transaction Date,Description,Amount
03/15/2024,Coffee Shop,-4.50
03/16/2024,"Payroll, ACME Inc",2500.00
03/17/2024,Grocery Store,($82.10)
`

func newImportFixture(cfg ImportConfig) (*ImportService, *mockTransactionStore, *mockImportJobStore) {
	txs := &mockTransactionStore{failCalls: map[int]bool{}}
	jobs := newMockImportJobStore()
	svc := NewImportService(txs, jobs, cfg)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, txs, jobs
}

func generatedStatement(n int) string {
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "2024-01-01,Purchase %d,%d.25\n", i, i+1)
	}
	return b.String()
}

func TestImportCSV_ChaseStatement(t *testing.T) {
	svc, txs, jobs := newImportFixture(ImportConfig{})

	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "user-1", CSVContent: chaseStatement})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, types.BankChase, res.BankFormat)
	assert.NoError(t, uuid.Validate(res.JobID))

	require.Len(t, txs.transactions, 3)
	tx := txs.transactions[1]
	assert.Equal(t, "2024-03-16", tx.Date)
	assert.Equal(t, 2500.0, tx.Amount)
	assert.Equal(t, "Payroll, ACME Inc", tx.Description)
	assert.Equal(t, tx.Description, tx.Merchant)
	assert.Equal(t, types.SourceCSVImport, tx.Source)
	require.NotNil(t, tx.ImportJobID)
	assert.Equal(t, res.JobID, *tx.ImportJobID)
	assert.Equal(t, -82.10, txs.transactions[2].Amount)

	job := jobs.jobs[res.JobID]
	require.NotNil(t, job)
	assert.Equal(t, types.ImportStatusCompleted, job.Status)
	assert.Equal(t, 3, job.TotalRows)
	assert.Equal(t, 3, job.ProcessedRows)
	assert.Equal(t, 3, job.SuccessfulRows)
	require.NotNil(t, job.BankFormat)
	assert.Equal(t, types.BankChase, *job.BankFormat)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestImportCSV_ReimportIsAllDuplicates(t *testing.T) {
	svc, txs, _ := newImportFixture(ImportConfig{})
	ctx := context.Background()

	first, err := svc.ImportCSV(ctx, ImportInput{UserID: "user-1", CSVContent: chaseStatement})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Imported)

	second, err := svc.ImportCSV(ctx, ImportInput{UserID: "user-1", CSVContent: chaseStatement})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.Duplicates)
	assert.Len(t, txs.transactions, 3)

	// other users do not share dedup state
	other, err := svc.ImportCSV(ctx, ImportInput{UserID: "user-2", CSVContent: chaseStatement})
	require.NoError(t, err)
	assert.Equal(t, 3, other.Imported)
}

func TestImportCSV_DuplicatesWithinFile(t *testing.T) {
	svc, _, _ := newImportFixture(ImportConfig{})
	csv := "posted date,value,memo\n2024-01-01,10,Lunch\n2024-01-01,10.00,Lunch\n2024-01-01,10,Dinner\n"

	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: csv})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, types.BankGeneric, res.BankFormat)
}

func TestImportCSV_RowErrors(t *testing.T) {
	svc, _, jobs := newImportFixture(ImportConfig{})
	csv := "Date,Description,Amount\n" +
		"2024-13-45,Bad date,1\n" +
		"2024-01-02,Bad amount,abc\n" +
		"2024-01-03,,5\n" +
		"2024-01-04,Fine,5\n"

	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: csv})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 3, res.Errors)

	job := jobs.jobs[res.JobID]
	assert.Equal(t, 4, job.ProcessedRows)
	assert.Equal(t, 3, job.FailedRows)
	assert.Equal(t, []types.RowError{
		{Row: 2, Error: `Invalid date: "2024-13-45"`},
		{Row: 3, Error: `Invalid amount: "abc"`},
		{Row: 4, Error: "Missing description"},
	}, job.ErrorLog)
}

func TestImportCSV_InputShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mapping *csvimport.MappingConfig
		code    string
	}{
		{"empty", "", nil, "EMPTY_CSV"},
		{"header only", "Date,Amount,Description\n", nil, "EMPTY_CSV"},
		{"unknown columns", "foo,bar\n1,2\n", nil, "MISSING_COLUMNS"},
		{"bad mapping", "When,How Much,What\n2024-01-01,1,x\n", &csvimport.MappingConfig{DateColumn: "When", AmountColumn: "Value", DescriptionColumn: "What"}, "MISSING_COLUMNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, txs, jobs := newImportFixture(ImportConfig{})
			_, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: tt.content, Mapping: tt.mapping})
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.Categorize(err).Code)
			assert.Equal(t, 400, apperrors.Categorize(err).StatusCode)
			assert.Empty(t, jobs.jobs)
			assert.Zero(t, txs.calls)
		})
	}
}

func TestImportCSV_MissingColumnsDetails(t *testing.T) {
	svc, _, _ := newImportFixture(ImportConfig{})
	_, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: "foo,bar\n1,2\n"})
	require.Error(t, err)

	cat := apperrors.Categorize(err)
	assert.Equal(t, types.BankGeneric, cat.Details["bankFormat"])
	assert.Equal(t, []string{"date", "amount", "description"}, cat.Details["missing"])
}

func TestImportCSV_CustomMapping(t *testing.T) {
	svc, txs, _ := newImportFixture(ImportConfig{})
	csv := "When,How Much,What\n2024-02-29,-12.00,Books\n"

	res, err := svc.ImportCSV(context.Background(), ImportInput{
		UserID:     "u",
		CSVContent: csv,
		Mapping:    &csvimport.MappingConfig{DateColumn: "when", AmountColumn: "How Much", DescriptionColumn: "WHAT"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.BankCustom, res.BankFormat)
	require.Len(t, txs.transactions, 1)
	assert.Equal(t, "2024-02-29", txs.transactions[0].Date)
}

func TestImportCSV_Chunking(t *testing.T) {
	svc, txs, jobs := newImportFixture(ImportConfig{BatchSize: 100})

	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: generatedStatement(250)})
	require.NoError(t, err)
	assert.Equal(t, 250, res.Imported)
	assert.Equal(t, []int{100, 100, 50}, txs.batchLens)

	require.Len(t, jobs.progress, 3)
	assert.Equal(t, 100, jobs.progress[0].ProcessedRows)
	assert.Equal(t, 200, jobs.progress[1].ProcessedRows)
	assert.Equal(t, 250, jobs.progress[2].SuccessfulRows)
}

func TestImportCSV_ChunkFailurePolicies(t *testing.T) {
	tests := []struct {
		name         string
		policy       types.ChunkFailurePolicy
		wantImported int
		wantCalls    int
		wantErrors   []string
	}{
		{
			name:         "best effort keeps going",
			policy:       types.ChunkPolicyBestEffort,
			wantImported: 150,
			wantCalls:    3,
			wantErrors:   []string{"Failed to insert rows 102-201: connection reset by peer"},
		},
		{
			name:         "abort skips the rest",
			policy:       types.ChunkPolicyAbort,
			wantImported: 100,
			wantCalls:    2,
			wantErrors: []string{
				"Failed to insert rows 102-201: connection reset by peer",
				"Rows 202-251 skipped: import aborted after a failed batch",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, txs, jobs := newImportFixture(ImportConfig{BatchSize: 100, ChunkPolicy: tt.policy})
			txs.failCalls[2] = true

			res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: generatedStatement(250)})
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantImported, res.Imported)
			assert.Equal(t, len(tt.wantErrors), res.Errors)
			assert.Equal(t, tt.wantCalls, txs.calls)

			job := jobs.jobs[res.JobID]
			assert.Equal(t, types.ImportStatusCompleted, job.Status)
			assert.Equal(t, 250, job.ProcessedRows)
			assert.Equal(t, 250-tt.wantImported, job.FailedRows)
			var msgs []string
			for _, e := range job.ErrorLog {
				msgs = append(msgs, e.Error)
			}
			assert.Equal(t, tt.wantErrors, msgs)
		})
	}
}

func TestImportCSV_ErrorLogTruncated(t *testing.T) {
	svc, _, jobs := newImportFixture(ImportConfig{MaxErrorLog: 5})
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for i := 0; i < 12; i++ {
		b.WriteString("not-a-date,x,1\n")
	}

	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: b.String()})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Errors)
	job := jobs.jobs[res.JobID]
	assert.Len(t, job.ErrorLog, 5)
	assert.Equal(t, 12, job.FailedRows)
}

func TestImportCSV_JobIDs(t *testing.T) {
	svc, _, jobs := newImportFixture(ImportConfig{})
	ctx := context.Background()
	jobID := uuid.New().String()

	res, err := svc.ImportCSV(ctx, ImportInput{UserID: "owner", JobID: jobID, CSVContent: chaseStatement})
	require.NoError(t, err)
	assert.Equal(t, jobID, res.JobID)

	_, err = svc.ImportCSV(ctx, ImportInput{UserID: "intruder", JobID: jobID, CSVContent: chaseStatement})
	require.Error(t, err)
	assert.Equal(t, 404, apperrors.Categorize(err).StatusCode)
	assert.Equal(t, "owner", jobs.jobs[jobID].UserID)

	_, err = svc.ImportCSV(ctx, ImportInput{UserID: "owner", JobID: "not-a-uuid", CSVContent: chaseStatement})
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", apperrors.Categorize(err).Code)
}

func TestImportCSV_StoreFailures(t *testing.T) {
	t.Run("listing existing transactions", func(t *testing.T) {
		svc, txs, jobs := newImportFixture(ImportConfig{})
		txs.listErr = errDatabaseDown

		_, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: chaseStatement})
		require.Error(t, err)
		assert.Equal(t, "DATABASE_ERROR", apperrors.Categorize(err).Code)
		assert.Empty(t, jobs.jobs)
	})

	t.Run("starting the job", func(t *testing.T) {
		svc, txs, jobs := newImportFixture(ImportConfig{})
		jobs.startErr = errDatabaseDown

		_, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "u", CSVContent: chaseStatement})
		require.Error(t, err)
		assert.ErrorIs(t, err, errDatabaseDown)
		assert.Zero(t, txs.calls)
	})
}

func TestImportCSV_CancelledStillCompletesJob(t *testing.T) {
	svc, txs, jobs := newImportFixture(ImportConfig{BatchSize: 100})
	ctx, cancel := context.WithCancel(context.Background())
	jobID := uuid.New().String()

	// cancel once the first chunk has been inserted
	store := &cancellingStore{mockTransactionStore: txs, cancel: cancel}
	svc.transactions = store

	_, err := svc.ImportCSV(ctx, ImportInput{UserID: "u", JobID: jobID, CSVContent: generatedStatement(250)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	job := jobs.jobs[jobID]
	assert.Equal(t, types.ImportStatusCompleted, job.Status)
	assert.Equal(t, 100, job.SuccessfulRows)
	assert.Equal(t, 250, job.ProcessedRows)
	assert.Len(t, job.ErrorLog, 2)
	assert.Equal(t, 1, txs.calls)
}

type cancellingStore struct {
	*mockTransactionStore
	cancel context.CancelFunc
}

func (c *cancellingStore) BatchInsert(ctx context.Context, txs []*models.Transaction) error {
	err := c.mockTransactionStore.BatchInsert(ctx, txs)
	c.cancel()
	return err
}

func TestGetJob(t *testing.T) {
	svc, _, _ := newImportFixture(ImportConfig{})
	res, err := svc.ImportCSV(context.Background(), ImportInput{UserID: "owner", CSVContent: chaseStatement})
	require.NoError(t, err)

	job, err := svc.GetJob(context.Background(), "owner", res.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.ImportStatusCompleted, job.Status)

	_, err = svc.GetJob(context.Background(), "someone-else", res.JobID)
	require.Error(t, err)
	assert.Equal(t, "IMPORT_JOB_NOT_FOUND", apperrors.Categorize(err).Code)
	assert.Equal(t, 404, apperrors.Categorize(err).StatusCode)

	_, err = svc.GetJob(context.Background(), "owner", "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PARAMETER", apperrors.Categorize(err).Code)
}
