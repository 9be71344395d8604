// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/finance-coach/internal/circuitbreaker"
	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/service"
)

// Service interfaces for dependency injection and testing

// SimulationServiceInterface defines the projection operations
type SimulationServiceInterface interface {
	Simulate(ctx context.Context, in service.SimulateInput) (*service.SimulateResult, error)
}

// ImportServiceInterface defines the CSV import operations
type ImportServiceInterface interface {
	ImportCSV(ctx context.Context, in service.ImportInput) (*service.ImportResult, error)
	GetJob(ctx context.Context, userID, jobID string) (*models.ImportJob, error)
}

// InsightServiceInterface defines the scenario summary operation
type InsightServiceInterface interface {
	GenerateInsights(ctx context.Context, userID, scenarioID string) (*service.ScenarioInsights, error)
}

// HealthChecker is a dependency that can be pinged
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	simulation SimulationServiceInterface
	imports    ImportServiceInterface
	insights   InsightServiceInterface
	checks     map[string]HealthChecker
	aiBreaker  *circuitbreaker.CircuitBreaker
	monitor    *service.SimulationMonitor
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	JWTSecret       string
	JWTIssuer       string
	RequestsPerSec  int
	Burst           int
	MaxCSVBytes     int64
}

// NewServer creates a new API server instance. checks, aiBreaker and
// monitor only feed the health endpoint and may be nil.
func NewServer(
	config *ServerConfig,
	simulation SimulationServiceInterface,
	imports ImportServiceInterface,
	insights InsightServiceInterface,
	checks map[string]HealthChecker,
	aiBreaker *circuitbreaker.CircuitBreaker,
	monitor *service.SimulationMonitor,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		simulation: simulation,
		imports:    imports,
		insights:   insights,
		checks:     checks,
		aiBreaker:  aiBreaker,
		monitor:    monitor,
		config:     config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// Recovery sits inside compression so a 500 is written through the
	// gzip stream. CORS answers preflight requests before auth runs.
	s.router.Use(LoggingMiddleware)
	s.router.Use(CompressionMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondServiceError(w, r, apperrors.NewNotFoundError("route", r.URL.Path))
	})

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/").Subrouter()
	protected.Use(AuthMiddleware(s.config.JWTSecret, s.config.JWTIssuer))
	protected.Use(RateLimitMiddleware(rateLimiter))

	protected.HandleFunc("/digital-twin-simulate", s.handleSimulate).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/process-csv-import", s.handleImportCSV).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/import-jobs/{id}", s.handleGetImportJob).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/scenario-insights", s.handleScenarioInsights).Methods(http.MethodPost, http.MethodOptions)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth pings every dependency and reports the AI gateway breaker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  status,
		"service": "finance-coach",
		"checks":  checks,
	}
	if s.aiBreaker != nil {
		body["aiGateway"] = s.aiBreaker.GetStats()
	}
	if s.monitor != nil {
		body["simulation"] = s.monitor.GetStats()
		body["simulationPerformance"] = s.monitor.CheckPerformance()
	}
	respondJSON(w, code, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
