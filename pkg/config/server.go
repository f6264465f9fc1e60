package config

import (
	"fmt"
	"os"
	"strconv"
)

type TLSConfig struct {
	Enable   bool   `json:"enable" yaml:"enable" toml:"enable"`
	CertFile string `json:"cert_file" yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file" toml:"key_file"`
}

type ServerConfig struct {
	Addr string    `json:"addr" yaml:"addr" toml:"addr"`
	TLS  TLSConfig `json:"tls" yaml:"tls" toml:"tls"`
	// MaxEvents caps the in-memory event history.
	MaxEvents int `json:"max_events" yaml:"max_events" toml:"max_events"`
	// Quiet disables printing received events to the log.
	Quiet bool `json:"quiet" yaml:"quiet" toml:"quiet"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":9090",
		MaxEvents: 500,
	}
}

// LoadServerConfig reads the collector config; priority is env > file > default.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := defaultServerConfig()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if v := os.Getenv("NCONSOLE_COLLECTOR_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("NCONSOLE_COLLECTOR_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEvents = n
		}
	}
	if v := os.Getenv("NCONSOLE_COLLECTOR_QUIET"); v != "" {
		cfg.Quiet = envBool(v)
	}
	if v := os.Getenv("NCONSOLE_TLS_ENABLE"); v != "" {
		cfg.TLS.Enable = envBool(v)
	}
	if v := os.Getenv("NCONSOLE_TLS_CERT"); v != "" {
		cfg.TLS.CertFile = v
	}
	if v := os.Getenv("NCONSOLE_TLS_KEY"); v != "" {
		cfg.TLS.KeyFile = v
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultServerConfig().MaxEvents
	}
	return cfg, nil
}
