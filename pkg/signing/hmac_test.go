package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignAndVerifyScenario1(t *testing.T) {
	canonical := "get\n/reports\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z"
	secret := []byte("sekret")

	sig := Sign(secret, canonical)
	assert.True(t, Verify(secret, canonical, sig))
}

func TestVerifyFailsOnMutatedCanonicalString(t *testing.T) {
	secret := []byte("sekret")
	canonical := "get\n/reports\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z"
	sig := Sign(secret, canonical)

	mutations := []string{
		"post\n/reports\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z",
		"get\n/reports2\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z",
		"get\n/reports\npackages=pkg_a,pkg_c\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z",
		"get\n/reports\npackages=pkg_a,pkg_b\nhost: node:4901\ntimestamp: 2024-01-01T00:00:00Z",
		"get\n/reports\npackages=pkg_a,pkg_b\nhost: node:4900\ntimestamp: 2024-01-01T00:00:01Z",
	}
	for _, m := range mutations {
		assert.False(t, Verify(secret, m, sig), "mutation should fail verification: %q", m)
	}
}

func TestVerifyFailsOnWrongSecret(t *testing.T) {
	canonical := "get\n/reports\nhost: node:4900\ntimestamp: 2024-01-01T00:00:00Z"
	sig := Sign([]byte("sekret"), canonical)
	assert.False(t, Verify([]byte("wrong-secret"), canonical, sig))
}
