// Package c2 implements the C2 Service of spec.md §4.4: the central
// HTTP server that tracks live Nodes, persists sessions/executions/
// reports, authorizes Clients and Nodes, replicates packages to
// Nodes, proxies test execution, and serves historical queries.
package c2

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/secchiware/secchiware/config"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/broker"
	"github.com/secchiware/secchiware/pkg/c2/activetable"
	"github.com/secchiware/secchiware/pkg/c2/repository"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/health"
	"github.com/secchiware/secchiware/pkg/httpx"
	"github.com/secchiware/secchiware/pkg/signing"
)

// Service holds the C2's dependencies, injected explicitly per
// spec.md §9's "no hidden module-level singletons" design note.
type Service struct {
	Store    store.Store
	Table    *activetable.Table
	Repo     *repository.Repository
	Broker   broker.Broker
	Verifier *signing.Verifier
	Logger   logger.Logger
	Health   *health.Checker

	selfKeyID string
	selfKey   []byte
	httpc     *http.Client

	server *http.Server
	addr   string
}

// New wires a Service from its dependencies and cfg's CORS/timeout
// settings.
func New(cfg *config.C2Config, st store.Store, tbl *activetable.Table, repo *repository.Repository, brk broker.Broker, verifier *signing.Verifier, log logger.Logger) *Service {
	checker := health.NewChecker()
	checker.Register("store", st.Ping)
	checker.Register("broker", func(ctx context.Context) error {
		_, err := brk.Get(ctx, "health:probe")
		if err == broker.ErrNotFound {
			return nil
		}
		return err
	})

	return &Service{
		Store:     st,
		Table:     tbl,
		Repo:      repo,
		Broker:    brk,
		Verifier:  verifier,
		Logger:    log,
		Health:    checker,
		selfKeyID: cfg.SelfKeyID,
		selfKey:   []byte(cfg.Secrets[cfg.SelfKeyID]),
		httpc:     &http.Client{Timeout: cfg.NodeTimeout},
		addr:      cfg.ListenAddr,
	}
}

// Router builds the chi router for the full endpoint surface.
func (s *Service) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/environments", verifySignature(s.Verifier, s.Logger, s.handleRegisterEnvironment))
	r.Delete("/environments/{ip}/{port}", verifySignature(s.Verifier, s.Logger, s.handleDeregisterEnvironment))
	r.Get("/environments", s.handleListEnvironments)
	r.Patch("/environments/{ip}/{port}/installed", verifySignature(s.Verifier, s.Logger, s.handleInstallToEnvironment))
	r.Get("/environments/{ip}/{port}/reports", s.handleEnvironmentReports)

	r.Get("/test_sets", s.handleListTestSets)
	r.Patch("/test_sets", verifySignature(s.Verifier, s.Logger, s.handleInstallTestSets))
	r.Delete("/test_sets/{package}", verifySignature(s.Verifier, s.Logger, s.handleRemoveTestSet))

	r.Get("/sessions", s.handleListSessions)
	r.Get("/sessions/{id}", s.handleGetSession)
	r.Delete("/sessions/{id}", s.handleDeleteSession)
	r.Get("/executions", s.handleListExecutions)

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Health.Run(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, report)
}

func (s *Service) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Start runs the HTTP server in the background.
func (s *Service) Start(handler http.Handler) {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.Logger.Info("starting c2 server", logger.String("addr", s.addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Error("c2 server error", logger.Error(err))
		}
	}()
}

// Stop gracefully shuts the HTTP server down.
func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func newID() string {
	return uuid.NewString()
}
