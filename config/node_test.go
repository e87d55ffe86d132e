package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadNodeConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid config", func(t *testing.T) {
		path := writeFile(t, dir, "node.yaml", `
c2_host: c2.internal
c2_port: 5000
listen_ip: 0.0.0.0
listen_port: 4900
keyId: node-1
secret: nodesecret
test_root: /var/lib/secchiware/tests
c2_public_keyId: C2
c2_secret: c2secret
timeout_ms: 2000
`)
		cfg, err := LoadNodeConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "c2.internal", cfg.C2Host)
		assert.Equal(t, 4900, cfg.ListenPort)
		assert.Equal(t, 2000*1e6, float64(cfg.Timeout()))
	})

	t.Run("missing required field", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", `
c2_host: c2.internal
listen_port: 4900
`)
		_, err := LoadNodeConfig(path)
		assert.Error(t, err)
	})

	t.Run("default timeout", func(t *testing.T) {
		path := writeFile(t, dir, "notimeout.yaml", `
c2_host: c2.internal
c2_port: 5000
listen_ip: 0.0.0.0
listen_port: 4900
keyId: node-1
secret: nodesecret
test_root: /tests
c2_public_keyId: C2
c2_secret: c2secret
`)
		cfg, err := LoadNodeConfig(path)
		require.NoError(t, err)
		assert.Equal(t, int64(10e9), cfg.Timeout().Nanoseconds())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadNodeConfig(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}
