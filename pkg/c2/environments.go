package c2

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/c2/activetable"
	"github.com/secchiware/secchiware/pkg/c2/api"
	"github.com/secchiware/secchiware/pkg/c2/query"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/httpx"
)

// handleRegisterEnvironment is POST /environments [Node]: open a
// Session row, insert into the active-node table, 204.
func (s *Service) handleRegisterEnvironment(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "malformed register request body", err))
		return
	}
	if req.IP == "" || req.Port <= 0 {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "ip and port are required", nil))
		return
	}

	ctx := r.Context()
	token, err := s.Table.Lock(ctx, req.IP, req.Port)
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeConflict, "environment registration in progress", err))
		return
	}
	defer s.Table.Unlock(ctx, req.IP, req.Port, token)

	keyID := signedKeyID(ctx)

	if existing, err := s.Table.Get(ctx, req.IP, req.Port); err == nil {
		if existing.KeyID == keyID {
			// Idempotent re-registration by the same node identity:
			// close the stale session and open a fresh one.
			_ = s.Store.Sessions().Close(ctx, existing.SessionID, time.Now().UTC())
		} else {
			httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeConflict, "environment already registered under a different identity", nil))
			return
		}
	}

	now := time.Now().UTC()
	session := &store.Session{
		ID:           newID(),
		SessionStart: now,
		EnvIP:        req.IP,
		EnvPort:      req.Port,
		Platform:     toStorePlatform(req.Platform),
	}
	if err := s.Store.Sessions().Create(ctx, session); err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	entry := activetable.Entry{
		SessionID:    session.ID,
		SessionStart: now,
		Platform:     session.Platform,
		KeyID:        keyID,
	}
	if err := s.Table.Put(ctx, req.IP, req.Port, entry); err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	metrics.SessionsOpened.Inc()
	s.refreshActiveNodesGauge(ctx)

	w.WriteHeader(http.StatusNoContent)
}

// handleDeregisterEnvironment is DELETE /environments/{ip}/{port} [Node]:
// close the Session, remove the active entry, 204. 404 if not present.
func (s *Service) handleDeregisterEnvironment(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "port must be an integer", err))
		return
	}

	ctx := r.Context()
	token, err := s.Table.Lock(ctx, ip, port)
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeConflict, "environment deregistration in progress", err))
		return
	}
	defer s.Table.Unlock(ctx, ip, port, token)

	entry, err := s.Table.Get(ctx, ip, port)
	if err != nil {
		httpx.WriteError(w, s.Logger, store.ErrNotFound)
		return
	}
	if keyID := signedKeyID(ctx); keyID != entry.KeyID {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeAuthentication, "signer does not match the registering node identity", nil))
		return
	}

	if err := s.Store.Sessions().Close(ctx, entry.SessionID, time.Now().UTC()); err != nil && err != store.ErrNotFound {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	if err := s.Table.Delete(ctx, ip, port); err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	metrics.SessionsClosed.WithLabelValues("explicit").Inc()
	s.refreshActiveNodesGauge(ctx)

	w.WriteHeader(http.StatusNoContent)
}

// refreshActiveNodesGauge re-derives the active-node gauge from the
// table's own size rather than incrementing/decrementing independently,
// so a missed decrement can never leave the gauge permanently wrong.
func (s *Service) refreshActiveNodesGauge(ctx context.Context) {
	endpoints, err := s.Table.List(ctx)
	if err != nil {
		return
	}
	metrics.ActiveNodes.Set(float64(len(endpoints)))
}

// handleListEnvironments is the searchable read-only GET /environments.
func (s *Service) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseEnvironmentFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	ctx := r.Context()
	endpoints, err := s.Table.List(ctx)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	out := make([]api.Environment, 0, len(endpoints))
	for _, ep := range endpoints {
		if len(filter.IPs) > 0 && !containsString(filter.IPs, ep.IP) {
			continue
		}
		if len(filter.Ports) > 0 && !containsInt(filter.Ports, ep.Port) {
			continue
		}
		entry, err := s.Table.Get(ctx, ep.IP, ep.Port)
		if err != nil {
			continue
		}
		if len(filter.SystemNames) > 0 && !containsString(filter.SystemNames, entry.Platform.OSSystem) {
			continue
		}
		out = append(out, api.Environment{
			IP:           ep.IP,
			Port:         ep.Port,
			SessionID:    entry.SessionID,
			SessionStart: entry.SessionStart,
			Platform:     toAPIPlatform(entry.Platform),
		})
	}

	sortEnvironments(out, filter)
	httpx.WriteJSON(w, http.StatusOK, paginateEnvironments(out, filter))
}

func sortEnvironments(envs []api.Environment, filter query.EnvironmentFilter) {
	less := func(i, j int) bool {
		switch filter.OrderBy {
		case "ip":
			return envs[i].IP < envs[j].IP
		case "port":
			return envs[i].Port < envs[j].Port
		default:
			return envs[i].SessionStart.Before(envs[j].SessionStart)
		}
	}
	sort.Slice(envs, func(i, j int) bool {
		if filter.Arrange == store.Descending {
			return !less(i, j)
		}
		return less(i, j)
	})
}

func paginateEnvironments(envs []api.Environment, filter query.EnvironmentFilter) []api.Environment {
	if filter.Offset >= len(envs) {
		return []api.Environment{}
	}
	envs = envs[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(envs) {
		envs = envs[:filter.Limit]
	}
	return envs
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func toStorePlatform(p api.PlatformInfo) store.PlatformInfo {
	return store.PlatformInfo{
		OSSystem:                  p.OSSystem,
		OSRelease:                 p.OSRelease,
		OSVersion:                 p.OSVersion,
		Machine:                   p.Machine,
		Processor:                 p.Processor,
		InterpreterBuild:          p.InterpreterBuild,
		InterpreterCompiler:       p.InterpreterCompiler,
		InterpreterImplementation: p.InterpreterImplementation,
		InterpreterVersion:        p.InterpreterVersion,
	}
}

func toAPIPlatform(p store.PlatformInfo) api.PlatformInfo {
	return api.PlatformInfo{
		OSSystem:                  p.OSSystem,
		OSRelease:                 p.OSRelease,
		OSVersion:                 p.OSVersion,
		Machine:                   p.Machine,
		Processor:                 p.Processor,
		InterpreterBuild:          p.InterpreterBuild,
		InterpreterCompiler:       p.InterpreterCompiler,
		InterpreterImplementation: p.InterpreterImplementation,
		InterpreterVersion:        p.InterpreterVersion,
	}
}
