package signing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/secchiware/secchiware/pkg/broker/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignedRequest(t *testing.T, method, target string, body []byte, keyID string, secret []byte, ts time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Host = "node:4900"

	headers := []string{}
	if len(body) > 0 {
		req.Header.Set("Digest", Digest(body))
		headers = append(headers, "digest")
	}
	req.Header.Set("Timestamp", ts.UTC().Format(time.RFC3339))
	req.Header.Set("Host", req.Host)

	signed := append([]string{"host", "timestamp"}, headers...)
	fields := make([]HeaderField, 0, len(signed))
	for _, name := range signed {
		fields = append(fields, HeaderField{Name: name, Value: req.Header.Get(name)})
	}
	if containsInsensitive(signed, "host") {
		fields[0].Value = req.Host
	}

	canonical := CanonicalString(req.Method, req.URL.Path, req.URL.RawQuery, fields)
	sig := Sign(secret, canonical)

	req.Header.Set("Authorization", FormatAuthorization(&Header{
		KeyID:     keyID,
		Headers:   signed,
		Signature: sig,
	}))
	return req
}

func containsInsensitive(list []string, needle string) bool {
	for _, v := range list {
		if v == needle {
			return true
		}
	}
	return false
}

func TestVerifierAcceptsValidRequest(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	brk := memory.New()
	v := NewVerifier(keys, brk, time.Minute)

	req := newSignedRequest(t, http.MethodGet, "/reports?packages=pkg_a,pkg_b", nil, "Node-1", []byte("sekret"), time.Now())

	parsed, err := v.Verify(context.Background(), Request{
		Method:   req.Method,
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
		Header:   ValuesFromHTTPRequest(req),
	})
	require.NoError(t, err)
	assert.Equal(t, "Node-1", parsed.KeyID)
}

func TestVerifierRejectsUnknownKeyID(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	v := NewVerifier(keys, memory.New(), time.Minute)

	req := newSignedRequest(t, http.MethodGet, "/reports", nil, "Node-ghost", []byte("sekret"), time.Now())
	_, err := v.Verify(context.Background(), Request{
		Method: req.Method, Path: req.URL.Path, RawQuery: req.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req),
	})

	require.Error(t, err)
	authErr, ok := err.(*AuthError)
	require.True(t, ok)
	assert.Equal(t, 401, authErr.Status)
	assert.Equal(t, CodeUnknownKeyID, authErr.Code)
}

func TestVerifierRejectsStaleTimestamp(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	v := NewVerifier(keys, memory.New(), time.Minute)

	req := newSignedRequest(t, http.MethodGet, "/reports", nil, "Node-1", []byte("sekret"), time.Now().Add(-time.Hour))
	_, err := v.Verify(context.Background(), Request{
		Method: req.Method, Path: req.URL.Path, RawQuery: req.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req),
	})

	authErr, ok := err.(*AuthError)
	require.True(t, ok)
	assert.Equal(t, CodeStale, authErr.Code)
}

func TestVerifierRejectsReplay(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	brk := memory.New()
	v := NewVerifier(keys, brk, time.Minute)

	ts := time.Now()
	req1 := newSignedRequest(t, http.MethodGet, "/reports", nil, "Node-1", []byte("sekret"), ts)
	req2 := newSignedRequest(t, http.MethodGet, "/reports", nil, "Node-1", []byte("sekret"), ts)

	_, err := v.Verify(context.Background(), Request{
		Method: req1.Method, Path: req1.URL.Path, RawQuery: req1.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req1),
	})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), Request{
		Method: req2.Method, Path: req2.URL.Path, RawQuery: req2.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req2),
	})
	require.Error(t, err)
	authErr, ok := err.(*AuthError)
	require.True(t, ok)
	assert.Equal(t, CodeReplay, authErr.Code)
}

func TestVerifierAllowsDistinctRequestsSharingATimestamp(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	brk := memory.New()
	v := NewVerifier(keys, brk, time.Minute)

	ts := time.Now()
	req1 := newSignedRequest(t, http.MethodGet, "/reports", nil, "Node-1", []byte("sekret"), ts)
	req2 := newSignedRequest(t, http.MethodGet, "/test_sets", nil, "Node-1", []byte("sekret"), ts)

	_, err := v.Verify(context.Background(), Request{
		Method: req1.Method, Path: req1.URL.Path, RawQuery: req1.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req1),
	})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), Request{
		Method: req2.Method, Path: req2.URL.Path, RawQuery: req2.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req2),
	})
	require.NoError(t, err, "a distinct request landing in the same timestamp second must not be rejected as a replay")
}

func TestVerifierRejectsDigestMismatch(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Client": "sekret"})
	v := NewVerifier(keys, memory.New(), time.Minute)

	body := []byte(`["p1"]`)
	req := newSignedRequest(t, http.MethodPatch, "/environments/10.0.0.2/4900/installed", body, "Client", []byte("sekret"), time.Now())

	_, err := v.Verify(context.Background(), Request{
		Method: req.Method, Path: req.URL.Path, RawQuery: req.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req),
		Body:   []byte(`["p2"]`),
	})

	authErr, ok := err.(*AuthError)
	require.True(t, ok)
	assert.Equal(t, CodeDigest, authErr.Code)
}

func TestVerifierRejectsMissingRequiredHeader(t *testing.T) {
	keys := NewStaticKeyStore(map[string]string{"Node-1": "sekret"})
	v := NewVerifier(keys, memory.New(), time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set("Authorization", FormatAuthorization(&Header{
		KeyID:     "Node-1",
		Headers:   []string{"timestamp"},
		Signature: []byte{1},
	}))

	_, err := v.Verify(context.Background(), Request{
		Method: req.Method, Path: req.URL.Path, RawQuery: req.URL.RawQuery,
		Header: ValuesFromHTTPRequest(req),
	})

	authErr, ok := err.(*AuthError)
	require.True(t, ok)
	assert.Equal(t, 400, authErr.Status)
}
