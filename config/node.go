package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the Node's on-disk configuration file, per spec.md §6's
// "Node CLI surface": the node binary takes exactly one positional
// argument, the path to this file.
type NodeConfig struct {
	C2Host        string `yaml:"c2_host"`
	C2Port        int    `yaml:"c2_port"`
	ListenIP      string `yaml:"listen_ip"`
	ListenPort    int    `yaml:"listen_port"`
	KeyID         string `yaml:"keyId"`
	Secret        string `yaml:"secret"`
	TestRoot      string `yaml:"test_root"`
	C2PublicKeyID string `yaml:"c2_public_keyId"`
	C2Secret      string `yaml:"c2_secret"`
	TimeoutMS     int    `yaml:"timeout_ms"`
}

// Timeout returns TimeoutMS as a time.Duration, defaulting to 10s when
// unset.
func (c *NodeConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LoadNodeConfig reads and validates a Node config file.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node config: %w", err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse node config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}

	return &cfg, nil
}

func (c *NodeConfig) validate() error {
	switch {
	case c.C2Host == "":
		return fmt.Errorf("c2_host is required")
	case c.ListenPort <= 0:
		return fmt.Errorf("listen_port must be positive")
	case c.KeyID == "":
		return fmt.Errorf("keyId is required")
	case c.Secret == "":
		return fmt.Errorf("secret is required")
	case c.TestRoot == "":
		return fmt.Errorf("test_root is required")
	case c.C2PublicKeyID == "":
		return fmt.Errorf("c2_public_keyId is required")
	case c.C2Secret == "":
		return fmt.Errorf("c2_secret is required")
	}
	return nil
}
