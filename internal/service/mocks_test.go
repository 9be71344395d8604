package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/finance-coach/internal/adapter"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/storage"
	"github.com/finance-coach/internal/types"
)

var errDatabaseDown = errors.New("connection reset by peer")

// Mock repositories for testing

type mockProfileStore struct {
	profiles  map[string]*models.FinancialProfile
	getErr    error
	upsertErr error
	upserts   int
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*models.FinancialProfile)}
}

func (m *mockProfileStore) GetByUserID(ctx context.Context, userID string) (*models.FinancialProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockProfileStore) Upsert(ctx context.Context, p *models.FinancialProfile) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

type mockAccountReader struct {
	accounts map[string][]*models.ConnectedAccount
	err      error
}

func (m *mockAccountReader) ListByUser(ctx context.Context, userID string) ([]*models.ConnectedAccount, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.accounts[userID], nil
}

type mockCashFlowReader struct {
	flows map[string]storage.CashFlow
	since time.Time
	err   error
}

func (m *mockCashFlowReader) CashFlowSince(ctx context.Context, userID string, since time.Time) (storage.CashFlow, error) {
	m.since = since
	if m.err != nil {
		return storage.CashFlow{}, m.err
	}
	return m.flows[userID], nil
}

type mockScenarioStore struct {
	scenarios map[string]*models.TwinScenario
	upsertErr error
	upserts   int
}

func newMockScenarioStore() *mockScenarioStore {
	return &mockScenarioStore{scenarios: make(map[string]*models.TwinScenario)}
}

func (m *mockScenarioStore) Upsert(ctx context.Context, s *models.TwinScenario) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("scenario-%d", m.upserts)
	}
	if existing, ok := m.scenarios[s.ID]; ok && existing.UserID != s.UserID {
		return storage.ErrNotFound
	}
	cp := *s
	m.scenarios[s.ID] = &cp
	return nil
}

func (m *mockScenarioStore) GetByIDAndUser(ctx context.Context, id, userID string) (*models.TwinScenario, error) {
	if s, ok := m.scenarios[id]; ok && s.UserID == userID {
		return s, nil
	}
	return nil, storage.ErrNotFound
}

// failingCache fails every operation
type failingCache struct {
	getErr error
	setErr error
	sets   int
}

func (c *failingCache) TwinKey(userID, scenarioID string, runs int) string {
	return fmt.Sprintf("twin:%s:%s:%d", userID, scenarioID, runs)
}

func (c *failingCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, c.getErr
}

func (c *failingCache) Set(ctx context.Context, key string, value interface{}) error {
	c.sets++
	return c.setErr
}

type mockTransactionStore struct {
	transactions []*models.Transaction
	listErr      error
	// failCalls lists 1-based BatchInsert calls that fail
	failCalls map[int]bool
	calls     int
	batchLens []int
}

func (m *mockTransactionStore) ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Transaction
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *mockTransactionStore) BatchInsert(ctx context.Context, txs []*models.Transaction) error {
	m.calls++
	m.batchLens = append(m.batchLens, len(txs))
	if m.failCalls[m.calls] {
		return errDatabaseDown
	}
	for _, tx := range txs {
		cp := *tx
		m.transactions = append(m.transactions, &cp)
	}
	return nil
}

type mockImportJobStore struct {
	jobs     map[string]*models.ImportJob
	progress []models.ImportProgress
	startErr error
}

func newMockImportJobStore() *mockImportJobStore {
	return &mockImportJobStore{jobs: make(map[string]*models.ImportJob)}
}

func (m *mockImportJobStore) Create(ctx context.Context, job *models.ImportJob) error {
	if _, ok := m.jobs[job.ID]; ok {
		return nil
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockImportJobStore) GetByIDAndUser(ctx context.Context, id, userID string) (*models.ImportJob, error) {
	if j, ok := m.jobs[id]; ok && j.UserID == userID {
		return j, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockImportJobStore) Start(ctx context.Context, id, userID string, totalRows int, format types.BankFormat, startedAt time.Time) error {
	if m.startErr != nil {
		return m.startErr
	}
	j, ok := m.jobs[id]
	if !ok || j.UserID != userID {
		return storage.ErrNotFound
	}
	j.Status = types.ImportStatusProcessing
	j.TotalRows = totalRows
	j.BankFormat = &format
	j.StartedAt = &startedAt
	return nil
}

func (m *mockImportJobStore) UpdateProgress(ctx context.Context, id string, p models.ImportProgress) error {
	m.progress = append(m.progress, p)
	j := m.jobs[id]
	j.ProcessedRows, j.SuccessfulRows, j.FailedRows, j.DuplicateRows = p.ProcessedRows, p.SuccessfulRows, p.FailedRows, p.DuplicateRows
	return nil
}

func (m *mockImportJobStore) Complete(ctx context.Context, id string, p models.ImportProgress, errorLog []types.RowError, completedAt time.Time) error {
	j := m.jobs[id]
	j.Status = types.ImportStatusCompleted
	j.ProcessedRows, j.SuccessfulRows, j.FailedRows, j.DuplicateRows = p.ProcessedRows, p.SuccessfulRows, p.FailedRows, p.DuplicateRows
	j.ErrorLog = errorLog
	j.CompletedAt = &completedAt
	return nil
}

type mockCompleter struct {
	resp *adapter.CompletionResponse
	err  error
	last adapter.CompletionRequest
}

func (m *mockCompleter) Complete(ctx context.Context, req adapter.CompletionRequest) (*adapter.CompletionResponse, error) {
	m.last = req
	return m.resp, m.err
}

// setupTestCache returns a Redis-backed response cache on miniredis
func setupTestCache(t *testing.T) (*storage.CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return storage.NewCacheService(storage.NewRedisCacheFromClient(client), 24*time.Hour), mr
}

func fixedSource() rand.Source {
	return rand.NewPCG(7, 11)
}

func f64(v float64) *float64 { return &v }
