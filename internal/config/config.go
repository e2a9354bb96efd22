// Package config reads fieldsync settings from
// ~/.config/fieldsync/config.json with FIELDSYNC_* environment
// overrides. Env always wins so a one-off run can point at a staging
// collector without editing the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CollectorConfig holds collector connection settings.
type CollectorConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"` // duration string, default "15s"
}

// QueueConfig holds retry tuning.
type QueueConfig struct {
	MaxRetries     *int   `json:"max_retries,omitempty"`      // nil = default 3
	BaseRetryDelay string `json:"base_retry_delay,omitempty"` // duration string, default "2s"
}

// AgentConfig holds background agent tuning.
type AgentConfig struct {
	ProbeInterval string `json:"probe_interval,omitempty"` // default "10s"
	SweepInterval string `json:"sweep_interval,omitempty"` // default "30s"
}

// ProxyConfig holds interception proxy settings.
type ProxyConfig struct {
	Listen string `json:"listen,omitempty"` // default "127.0.0.1:8787"
}

// Config is the global fieldsync config stored at
// ~/.config/fieldsync/config.json.
type Config struct {
	Collector CollectorConfig `json:"collector"`
	Queue     QueueConfig     `json:"queue"`
	Agent     AgentConfig     `json:"agent"`
	Proxy     ProxyConfig     `json:"proxy"`
}

const (
	defaultCollectorURL = "http://localhost:3000"
	defaultProxyListen  = "127.0.0.1:8787"
)

// ConfigDir returns ~/.config/fieldsync, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "fieldsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config from ~/.config/fieldsync/config.json.
// A missing file is an empty config, not an error.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to ~/.config/fieldsync/config.json.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// GetCollectorURL returns the collector base URL.
// Priority: FIELDSYNC_COLLECTOR_URL env > config.json > default.
func GetCollectorURL() string {
	if v := os.Getenv("FIELDSYNC_COLLECTOR_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Collector.URL != "" {
		return cfg.Collector.URL
	}
	return defaultCollectorURL
}

// GetMaxRetries returns the automatic retry bound.
// Priority: FIELDSYNC_MAX_RETRIES env > config.json > default (3).
func GetMaxRetries() int {
	if v := os.Getenv("FIELDSYNC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Queue.MaxRetries != nil && *cfg.Queue.MaxRetries > 0 {
		return *cfg.Queue.MaxRetries
	}
	return 3
}

// GetBaseRetryDelay returns the first backoff step.
// Priority: FIELDSYNC_BASE_RETRY_DELAY env > config.json > 2s.
func GetBaseRetryDelay() time.Duration {
	return durationSetting("FIELDSYNC_BASE_RETRY_DELAY", func(cfg *Config) string {
		return cfg.Queue.BaseRetryDelay
	}, 2*time.Second)
}

// GetProbeInterval returns the connectivity probe cadence.
// Priority: FIELDSYNC_PROBE_INTERVAL env > config.json > 10s.
func GetProbeInterval() time.Duration {
	return durationSetting("FIELDSYNC_PROBE_INTERVAL", func(cfg *Config) string {
		return cfg.Agent.ProbeInterval
	}, 10*time.Second)
}

// GetSweepInterval returns the periodic sweep cadence.
// Priority: FIELDSYNC_SWEEP_INTERVAL env > config.json > 30s.
func GetSweepInterval() time.Duration {
	return durationSetting("FIELDSYNC_SWEEP_INTERVAL", func(cfg *Config) string {
		return cfg.Agent.SweepInterval
	}, 30*time.Second)
}

// GetProxyListen returns the proxy bind address.
// Priority: FIELDSYNC_PROXY_LISTEN env > config.json > default.
func GetProxyListen() string {
	if v := os.Getenv("FIELDSYNC_PROXY_LISTEN"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Proxy.Listen != "" {
		return cfg.Proxy.Listen
	}
	return defaultProxyListen
}

// durationSetting resolves env > config.json > fallback for a
// duration-string setting.
func durationSetting(envKey string, fromCfg func(*Config) string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := Load()
	if err == nil {
		if s := fromCfg(cfg); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				return d
			}
		}
	}
	return fallback
}
