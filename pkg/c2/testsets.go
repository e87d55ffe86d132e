package c2

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/pkg/httpx"
)

// handleListTestSets is GET /test_sets: the C2's master repository
// tree, CRUD target for PATCH/DELETE below.
func (s *Service) handleListTestSets(w http.ResponseWriter, r *http.Request) {
	info, err := s.Repo.Info()
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, info)
}

// handleInstallTestSets is PATCH /test_sets [Client]: merge-install a
// bundle into the repository, identically to §4.2's Node semantics.
func (s *Service) handleInstallTestSets(w http.ResponseWriter, r *http.Request) {
	bundle, err := readMultipartPackages(r)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	if err := s.Repo.Install(bundle); err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveTestSet is DELETE /test_sets/{package} [Client].
func (s *Service) handleRemoveTestSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "package")
	if !s.Repo.HasPackage(name) {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeNotFound, "package not installed", nil))
		return
	}
	if err := s.Repo.Remove(name); err != nil {
		httpx.WriteError(w, s.Logger, err)
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
