package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type ClientConfig struct {
	URI              string   `json:"uri" yaml:"uri" toml:"uri"`
	Enabled          *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	DNSServers       []string `json:"dns_servers" yaml:"dns_servers" toml:"dns_servers"`
	DialTimeout      Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout"`
	WriteTimeout     Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	ResetOnSendError bool     `json:"reset_on_send_error" yaml:"reset_on_send_error" toml:"reset_on_send_error"`
}

// DefaultClientPath is read when LoadClientConfig gets an empty path.
var DefaultClientPath = filepath.Join("config", "nconsole.json")

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:  Duration(5 * time.Second),
		WriteTimeout: Duration(5 * time.Second),
	}
}

// IsEnabled treats an unset flag as enabled.
func (c ClientConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadClientConfig reads path (default config/nconsole.json) and applies env overrides.
func LoadClientConfig(path string) (ClientConfig, error) {
	if path == "" {
		path = DefaultClientPath
	}
	cfg := DefaultClientConfig()
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load %s: %w", path, err)
	}
	if v := os.Getenv("NCONSOLE_URI"); v != "" {
		cfg.URI = v
	}
	if v := os.Getenv("NCONSOLE_ENABLED"); v != "" {
		on := envBool(v)
		cfg.Enabled = &on
	}
	if v := os.Getenv("NCONSOLE_DNS_SERVERS"); v != "" {
		cfg.DNSServers = splitCSV(v)
	}
	if v := os.Getenv("NCONSOLE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DialTimeout = Duration(d)
		}
	}
	if v := os.Getenv("NCONSOLE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("NCONSOLE_RESET_ON_SEND_ERROR"); v != "" {
		cfg.ResetOnSendError = envBool(v)
	}
	// normalize
	cfg.URI = strings.TrimSpace(cfg.URI)
	if len(cfg.DNSServers) > 0 {
		cfg.DNSServers = splitCSV(strings.Join(cfg.DNSServers, ","))
	}
	return cfg, nil
}
