package c2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/c2/api"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/httpx"
	"github.com/secchiware/secchiware/pkg/signing"
)

// nodeBaseURL is the convention this deployment uses to reach a
// registered node: plain HTTP on its registered (ip, port). TLS, if
// required, is a deployment-layer concern per spec.md §1's Non-goals.
func nodeBaseURL(ip string, port int) string {
	return fmt.Sprintf("http://%s:%d", ip, port)
}

// signedRequest builds and signs a request to a node as the C2's own
// identity.
func (s *Service) signedRequest(method, url string, body []byte, contentType string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	var headers []string
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		headers = []string{"content-type"}
	}
	signing.SignHTTPRequest(req, s.selfKeyID, s.selfKey, body, headers)
	return req, nil
}

// handleInstallToEnvironment is PATCH /environments/{ip}/{port}/installed
// [Client]: pack the named root packages from the repository and
// replicate them to the node via a C2-signed PATCH /test_sets.
func (s *Service) handleInstallToEnvironment(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "port must be an integer", err))
		return
	}

	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "body must be a JSON array of package names", err))
		return
	}

	ctx := r.Context()
	if _, err := s.Table.Get(ctx, ip, port); err != nil {
		httpx.WriteError(w, s.Logger, store.ErrNotFound)
		return
	}

	bundle, err := s.Repo.Pack(names)
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeNotFound, err.Error(), err))
		return
	}

	body, contentType, err := multipartPackagesBody(bundle)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	req, err := s.signedRequest(http.MethodPatch, nodeBaseURL(ip, port)+"/test_sets", body, contentType)
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeUnreachable, "node unreachable", err))
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	default:
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeUpstream, "node returned an unexpected status", nil))
	}
}

func multipartPackagesBody(bundle []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("packages", "packages.tar.gz")
	if err != nil {
		return nil, "", fmt.Errorf("c2: build multipart body: %w", err)
	}
	if _, err := part.Write(bundle); err != nil {
		return nil, "", fmt.Errorf("c2: write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("c2: close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// handleEnvironmentReports is GET /environments/{ip}/{port}/reports:
// forward the selector as a signed GET /reports to the node, persist
// an Execution and its Reports, and return the report array. Durable
// best-effort: if persistence fails after the node already ran tests,
// the reports are still returned to the caller.
func (s *Service) handleEnvironmentReports(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "port must be an integer", err))
		return
	}

	ctx := r.Context()
	entry, err := s.Table.Get(ctx, ip, port)
	if err != nil {
		httpx.WriteError(w, s.Logger, store.ErrNotFound)
		return
	}

	nodeURL := nodeBaseURL(ip, port) + "/reports"
	if rawQuery := r.URL.RawQuery; rawQuery != "" {
		nodeURL += "?" + rawQuery
	}
	if _, err := url.Parse(nodeURL); err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeValidation, "malformed selector", err))
		return
	}

	req, err := s.signedRequest(http.MethodGet, nodeURL, nil, "")
	if err != nil {
		httpx.WriteError(w, s.Logger, err)
		return
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeUnreachable, "node unreachable", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeUpstream, "node returned an unexpected status", nil))
		return
	}

	var reports []api.TestReport
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		httpx.WriteError(w, s.Logger, logger.NewSecchiwareError(logger.ErrCodeUpstream, "node returned a malformed report array", err))
		return
	}

	execution := &store.Execution{
		ID:                  newID(),
		SessionID:           entry.SessionID,
		TimestampRegistered: time.Now().UTC(),
	}
	if err := s.Store.Executions().Create(ctx, execution); err != nil {
		s.Logger.Error("persist execution failed, returning reports best-effort", logger.Error(err))
		httpx.WriteJSON(w, http.StatusOK, reports)
		return
	}
	metrics.ExecutionsTotal.Inc()

	for _, rep := range reports {
		row := &store.Report{
			ID:              newID(),
			ExecutionID:     execution.ID,
			TestName:        rep.TestName,
			TestDescription: rep.TestDescription,
			ResultCode:      rep.ResultCode,
			TimestampStart:  rep.TimestampStart,
			TimestampEnd:    rep.TimestampEnd,
			AdditionalInfo:  rep.AdditionalInfo,
		}
		if err := s.Store.Reports().Create(ctx, row); err != nil {
			s.Logger.Error("persist report failed, returning reports best-effort", logger.Error(err))
			continue
		}
		metrics.ReportsPersisted.Inc()
	}

	httpx.WriteJSON(w, http.StatusOK, reports)
}
