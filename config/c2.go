package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// C2Config is the C2 service's deployment configuration: database DSN,
// broker address, CORS origins, HMAC role secrets, skew window, and
// forwarding timeouts.
type C2Config struct {
	Environment string `yaml:"environment"`

	ListenAddr string `yaml:"listen_addr"`

	Database DatabaseConfig `yaml:"database"`
	Broker   BrokerConfig   `yaml:"broker"`

	// Secrets maps keyId -> shared secret for every known Client and
	// Node identity. Role secrets (for the fixed "Client" and "C2"
	// keyIds) and per-node secrets both live here.
	Secrets map[string]string `yaml:"secrets"`

	// SelfKeyID is the keyId the C2 signs its own outbound requests to
	// Nodes with (replication, reports, liveness probes). Must match
	// the c2_public_keyId each Node's config expects, and Secrets must
	// carry its shared secret.
	SelfKeyID string `yaml:"self_key_id"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	SkewWindow      time.Duration `yaml:"skew_window"`
	NodeTimeout     time.Duration `yaml:"node_timeout"`
	LivenessPeriod  time.Duration `yaml:"liveness_period"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	RepositoryRoot  string        `yaml:"repository_root"`
}

// DatabaseConfig configures the pgx connection pool.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN renders the libpq-style connection string pgxpool.New expects.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// BrokerConfig selects and configures the cache/lock broker (pkg/broker).
type BrokerConfig struct {
	// Type is "redis" or "memory". "memory" is only valid for a
	// single-process deployment (see spec.md §4.5/§9).
	Type string `yaml:"type"`
	Addr string `yaml:"addr"`
}

// LoaderOptions configures the C2 config loader.
type LoaderOptions struct {
	ConfigDir   string
	Environment string
}

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config", Environment: ""}
}

// LoadC2Config loads the C2 configuration with automatic environment
// detection: it tries "<env>.yaml", then "default.yaml", then
// "config.yaml" under ConfigDir, falling back to an all-defaults
// config if none exist. Environment variables (loaded via a .env file
// if present, then the process environment) override file values for
// secrets and connection settings.
func LoadC2Config(opts ...LoaderOptions) (*C2Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	LoadDotEnv()

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadC2ConfigFile(filepath.Join(options.ConfigDir, env+".yaml"))
	if err != nil {
		cfg, err = loadC2ConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadC2ConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &C2Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setC2Defaults(cfg)
	applyC2EnvOverrides(cfg)

	return cfg, nil
}

func loadC2ConfigFile(path string) (*C2Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg C2Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func setC2Defaults(cfg *C2Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5000"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Broker.Type == "" {
		cfg.Broker.Type = "memory"
	}
	if cfg.SkewWindow <= 0 {
		cfg.SkewWindow = 5 * time.Minute
	}
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = 10 * time.Second
	}
	if cfg.LivenessPeriod <= 0 {
		cfg.LivenessPeriod = 30 * time.Second
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.Secrets == nil {
		cfg.Secrets = map[string]string{}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.SelfKeyID == "" {
		cfg.SelfKeyID = "C2"
	}
}

// applyC2EnvOverrides lets SECCHIWARE_* environment variables override
// the most commonly deployment-specific fields without editing YAML.
func applyC2EnvOverrides(cfg *C2Config) {
	if v := os.Getenv("SECCHIWARE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SECCHIWARE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SECCHIWARE_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("SECCHIWARE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SECCHIWARE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SECCHIWARE_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("SECCHIWARE_BROKER_ADDR"); v != "" {
		cfg.Broker.Addr = v
	}
	if v := os.Getenv("SECCHIWARE_CORS_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = strings.Split(v, ",")
	}
	for _, kv := range os.Environ() {
		const prefix = "SECCHIWARE_SECRET_"
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyID := strings.TrimPrefix(parts[0], prefix)
		cfg.Secrets[keyID] = parts[1]
	}
}
