package c2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/secchiware/secchiware/pkg/c2/api"
	"github.com/secchiware/secchiware/pkg/c2/repository"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodePort(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return p
}

func installRoot(t *testing.T, svc *Service, name string) {
	t.Helper()

	src := t.TempDir()
	pkgDir := filepath.Join(src, name)
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "tests.yaml"), []byte("name: "+name+"\n"), 0o644))

	srcRepo, err := repository.New(src)
	require.NoError(t, err)

	bundle, err := srcRepo.Pack([]string{name})
	require.NoError(t, err)

	require.NoError(t, svc.Repo.Install(bundle))
}

// TestReplicationForwardsInstallToNode exercises the replication-proxy
// contract: the C2 packs its repository's package and forwards it as a
// signed multipart PATCH /test_sets to the node.
func TestReplicationForwardsInstallToNode(t *testing.T) {
	svc, srv := newTestService(t)
	installRoot(t, svc, "sample")

	var received bool
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch && r.URL.Path == "/test_sets" {
			received = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer node.Close()

	port := nodePort(t, node.URL)
	registerNode(t, srv, "127.0.0.1", port, testNodeKeyID, testNodeSecret)

	body, err := json.Marshal(api.InstallRequest{"sample"})
	require.NoError(t, err)

	installURL := srv.URL + "/environments/127.0.0.1/" + strconv.Itoa(port) + "/installed"
	req := signedRequest(t, http.MethodPatch, installURL, body, testNodeKeyID, testNodeSecret)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, received)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// TestReplicationToUnreachableNodeReturns504 exercises the unreachable
// branch of scenario 4: the repository must be left unchanged.
func TestReplicationToUnreachableNodeReturns504(t *testing.T) {
	svc, srv := newTestService(t)
	installRoot(t, svc, "sample")

	before, err := svc.Repo.Info()
	require.NoError(t, err)

	// Port 1 is reserved and nothing listens on it locally.
	registerNode(t, srv, "127.0.0.1", 1, testNodeKeyID, testNodeSecret)

	body, err := json.Marshal(api.InstallRequest{"sample"})
	require.NoError(t, err)

	installURL := srv.URL + "/environments/127.0.0.1/1/installed"
	req := signedRequest(t, http.MethodPatch, installURL, body, testNodeKeyID, testNodeSecret)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	after, err := svc.Repo.Info()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestEnvironmentReportsPersistsExecutionAndReports exercises the
// report-forwarding contract: the C2 forwards a signed GET /reports to
// the node and persists an Execution plus its Reports.
func TestEnvironmentReportsPersistsExecutionAndReports(t *testing.T) {
	svc, srv := newTestService(t)

	reports := []api.TestReport{{
		TestName:        "sample.module.set.probe",
		TestDescription: "probes something",
		ResultCode:      0,
		TimestampStart:  time.Now().UTC(),
		TimestampEnd:    time.Now().UTC(),
	}}

	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reports)
	}))
	defer node.Close()

	port := nodePort(t, node.URL)
	registerNode(t, srv, "127.0.0.1", port, testNodeKeyID, testNodeSecret)

	reportsURL := srv.URL + "/environments/127.0.0.1/" + strconv.Itoa(port) + "/reports"
	resp, err := http.Get(reportsURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []api.TestReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "sample.module.set.probe", got[0].TestName)

	entry, err := svc.Table.Get(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)

	executions, err := svc.Store.Executions().List(context.Background(), store.ExecutionFilter{SessionIDs: []string{entry.SessionID}})
	require.NoError(t, err)
	require.Len(t, executions, 1)

	persisted, err := svc.Store.Reports().ListByExecution(context.Background(), executions[0].ID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "sample.module.set.probe", persisted[0].TestName)
}
