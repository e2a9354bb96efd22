package config

import (
	"testing"
	"time"
)

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	isolateHome(t)

	if got := GetCollectorURL(); got != defaultCollectorURL {
		t.Errorf("CollectorURL: got %s, want %s", got, defaultCollectorURL)
	}
	if got := GetMaxRetries(); got != 3 {
		t.Errorf("MaxRetries: got %d, want 3", got)
	}
	if got := GetBaseRetryDelay(); got != 2*time.Second {
		t.Errorf("BaseRetryDelay: got %v, want 2s", got)
	}
	if got := GetProbeInterval(); got != 10*time.Second {
		t.Errorf("ProbeInterval: got %v, want 10s", got)
	}
	if got := GetSweepInterval(); got != 30*time.Second {
		t.Errorf("SweepInterval: got %v, want 30s", got)
	}
	if got := GetProxyListen(); got != defaultProxyListen {
		t.Errorf("ProxyListen: got %s, want %s", got, defaultProxyListen)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("FIELDSYNC_COLLECTOR_URL", "https://collector.example.com")
	t.Setenv("FIELDSYNC_MAX_RETRIES", "5")
	t.Setenv("FIELDSYNC_BASE_RETRY_DELAY", "500ms")
	t.Setenv("FIELDSYNC_PROXY_LISTEN", "0.0.0.0:9999")

	if got := GetCollectorURL(); got != "https://collector.example.com" {
		t.Errorf("CollectorURL: got %s", got)
	}
	if got := GetMaxRetries(); got != 5 {
		t.Errorf("MaxRetries: got %d, want 5", got)
	}
	if got := GetBaseRetryDelay(); got != 500*time.Millisecond {
		t.Errorf("BaseRetryDelay: got %v, want 500ms", got)
	}
	if got := GetProxyListen(); got != "0.0.0.0:9999" {
		t.Errorf("ProxyListen: got %s", got)
	}
}

func TestEnvInvalidValuesFallBack(t *testing.T) {
	isolateHome(t)
	t.Setenv("FIELDSYNC_MAX_RETRIES", "not-a-number")
	t.Setenv("FIELDSYNC_BASE_RETRY_DELAY", "soonish")

	if got := GetMaxRetries(); got != 3 {
		t.Errorf("MaxRetries with bad env: got %d, want 3", got)
	}
	if got := GetBaseRetryDelay(); got != 2*time.Second {
		t.Errorf("BaseRetryDelay with bad env: got %v, want 2s", got)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	isolateHome(t)

	retries := 7
	cfg := &Config{
		Collector: CollectorConfig{URL: "http://depot.local:3000"},
		Queue:     QueueConfig{MaxRetries: &retries, BaseRetryDelay: "1s"},
		Proxy:     ProxyConfig{Listen: "127.0.0.1:8080"},
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Collector.URL != cfg.Collector.URL {
		t.Errorf("URL: got %s, want %s", loaded.Collector.URL, cfg.Collector.URL)
	}
	if loaded.Queue.MaxRetries == nil || *loaded.Queue.MaxRetries != 7 {
		t.Errorf("MaxRetries not round-tripped: %v", loaded.Queue.MaxRetries)
	}

	// Config file values feed the getters
	if got := GetCollectorURL(); got != "http://depot.local:3000" {
		t.Errorf("GetCollectorURL from file: got %s", got)
	}
	if got := GetMaxRetries(); got != 7 {
		t.Errorf("GetMaxRetries from file: got %d", got)
	}
}
