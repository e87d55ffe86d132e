package c2

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secchiware/secchiware/pkg/c2/query"
	"github.com/secchiware/secchiware/pkg/httpx"
)

// handleListSessions is GET /sessions: searchable read-only, strict
// query validation via pkg/c2/query.
func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseSessionFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	sessions, err := s.Store.Sessions().List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessions)
}

// handleGetSession is GET /sessions/{id}.
func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.Store.Sessions().Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, session)
}

// handleDeleteSession is DELETE /sessions/{id}: cascades to the
// session's executions and reports. An active session is not
// deletable (400).
func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.Sessions().Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListExecutions is GET /executions: searchable read-only.
func (s *Service) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseExecutionFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	executions, err := s.Store.Executions().List(r.Context(), filter)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, executions)
}
