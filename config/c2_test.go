package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadC2Config(t *testing.T) {
	t.Run("falls back to defaults with no files present", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadC2Config(LoaderOptions{ConfigDir: dir, Environment: "test"})
		require.NoError(t, err)
		assert.Equal(t, ":5000", cfg.ListenAddr)
		assert.Equal(t, "memory", cfg.Broker.Type)
		assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
	})

	t.Run("reads environment-specific file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(`
listen_addr: ":5050"
broker:
  type: redis
  addr: "localhost:6379"
database:
  host: db.internal
  port: 5432
  user: secchiware
  database: secchiware
`), 0o600))

		cfg, err := LoadC2Config(LoaderOptions{ConfigDir: dir, Environment: "test"})
		require.NoError(t, err)
		assert.Equal(t, ":5050", cfg.ListenAddr)
		assert.Equal(t, "redis", cfg.Broker.Type)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	})

	t.Run("env var overrides secrets", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("SECCHIWARE_SECRET_Client", "supersecret")
		t.Setenv("SECCHIWARE_LISTEN_ADDR", ":9999")

		cfg, err := LoadC2Config(LoaderOptions{ConfigDir: dir, Environment: "test"})
		require.NoError(t, err)
		assert.Equal(t, "supersecret", cfg.Secrets["Client"])
		assert.Equal(t, ":9999", cfg.ListenAddr)
	})
}
