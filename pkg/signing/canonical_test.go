package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalStringScenario1(t *testing.T) {
	// spec scenario 1: GET /reports?packages=pkg_a,pkg_b, signed
	// headers host/timestamp, no trailing newline.
	headers := []HeaderField{
		{Name: "host", Value: "node:4900"},
		{Name: "timestamp", Value: "2024-01-01T00:00:00Z"},
	}

	got := CanonicalString("GET", "/reports", "packages=pkg_a,pkg_b", headers)
	want := "get\n/reports\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z"

	assert.Equal(t, want, got)
}

func TestCanonicalStringEmptyQueryOmitsLine(t *testing.T) {
	headers := []HeaderField{{Name: "host", Value: "node:4900"}}

	got := CanonicalString("GET", "/test_sets", "", headers)
	want := "get\n/test_sets\nhost: node:4900"

	assert.Equal(t, want, got)
}

func TestCanonicalStringLowercasesMethodAndHeaderNames(t *testing.T) {
	headers := []HeaderField{{Name: "Host", Value: "c2:5000"}}
	got := CanonicalString("DELETE", "/environments/10.0.0.2/4900", "", headers)
	assert.Equal(t, "delete\n/environments/10.0.0.2/4900\nhost: c2:5000", got)
}

func TestCanonicalStringNoHeaders(t *testing.T) {
	got := CanonicalString("GET", "/test_sets", "", nil)
	assert.Equal(t, "get\n/test_sets", got)
}
