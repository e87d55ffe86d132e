package node

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/c2/query"
	"github.com/secchiware/secchiware/pkg/health"
	"github.com/secchiware/secchiware/pkg/httpx"
	"github.com/secchiware/secchiware/pkg/loader"
)

// Server is the Node's HTTP surface, endpoints exactly as spec.md §4.3.
type Server struct {
	node   *Node
	logger logger.Logger
	addr   string
	server *http.Server

	// onShutdown is invoked after DELETE / returns 204, before the
	// listener stops, so secchiware-node can exit the process.
	onShutdown func()
}

// NewServer builds the Node's chi router and HTTP server.
func NewServer(n *Node, addr string, onShutdown func()) *Server {
	s := &Server{node: n, logger: n.Logger, addr: addr, onShutdown: onShutdown}

	r := chi.NewRouter()
	r.Get("/test_sets", s.handleListTestSets)
	r.Patch("/test_sets", verifySignature(n.Verifier, s.logger, s.handleInstallTestSets))
	r.Delete("/test_sets/{package}", verifySignature(n.Verifier, s.logger, s.handleRemoveTestSet))
	r.Get("/reports", s.handleExecute)
	r.Delete("/", verifySignature(n.Verifier, s.logger, s.handleShutdown))

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start runs the HTTP server in the background. The returned channel
// receives one error and is closed if ListenAndServe fails to start
// (e.g. the listen address is already in use); it is never written to
// on a normal Stop-triggered shutdown. Callers use this to detect a
// startup failure and fall back per spec.md §7(vii).
func (s *Server) Start() <-chan error {
	startErr := make(chan error, 1)
	s.logger.Info("starting node server", logger.String("addr", s.addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("node server error", logger.Error(err))
			startErr <- err
		}
		close(startErr)
	}()
	return startErr
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListTestSets(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.node.Info())
}

func (s *Server) handleInstallTestSets(w http.ResponseWriter, r *http.Request) {
	bundle, err := readMultipartPackages(r)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	if err := s.node.Install(r.Context(), bundle); err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readMultipartPackages(r *http.Request) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &logger.SecchiwareError{Code: logger.ErrCodeUnsupportedMedia, Message: "expected multipart/form-data"}
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "packages" {
			return io.ReadAll(part)
		}
	}
	return nil, &logger.SecchiwareError{Code: logger.ErrCodeValidation, Message: `missing multipart field "packages"`}
}

func (s *Server) handleRemoveTestSet(w http.ResponseWriter, r *http.Request) {
	pkgName := chi.URLParam(r, "package")
	if err := s.node.Remove(r.Context(), pkgName); err != nil {
		var notFound *ErrPackageNotFound
		if errors.As(err, &notFound) {
			err = logger.NewSecchiwareError(logger.ErrCodeNotFound, err.Error(), err)
		}
		httpx.WriteError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	sel := loader.Selector{
		Packages: query.ParseCommaList(values, "packages"),
		Modules:  query.ParseCommaList(values, "modules"),
		TestSets: query.ParseCommaList(values, "test_sets"),
		Tests:    query.ParseCommaList(values, "tests"),
	}

	reports, err := s.node.Execute(r.Context(), sel)
	if err != nil {
		httpx.WriteError(w, s.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reports)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.node.Health.Run(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, report)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if s.onShutdown != nil {
		go s.onShutdown()
	}
}
