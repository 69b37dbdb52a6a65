package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Store.Backend != BackendFile {
		t.Errorf("Expected default backend %q, got %q", BackendFile, cfg.Store.Backend)
	}
	if cfg.Workers != 2 {
		t.Errorf("Expected 2 default workers, got %d", cfg.Workers)
	}
	if cfg.Fetch.RateLimit != time.Second {
		t.Errorf("Expected 1s rate limit, got %v", cfg.Fetch.RateLimit)
	}
	if !strings.Contains(cfg.Archive.BaseURL, "LeyesBiblio") {
		t.Errorf("Expected archive base URL to point at LeyesBiblio, got %q", cfg.Archive.BaseURL)
	}
	if cfg.Archive.DefaultCharset != "windows-1252" {
		t.Errorf("Expected windows-1252 default charset, got %q", cfg.Archive.DefaultCharset)
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if *cfg != *Default() {
		t.Errorf("Expected defaults when no config file exists, got %+v", cfg)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for explicit missing config file, got nil")
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `archive:
  base_url: https://mirror.example.org/LeyesBiblio
fetch:
  rate_limit: 250ms
  max_retries: 1
store:
  backend: mongo
  mongo_database: statutes
workers: 4
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Archive.BaseURL != "https://mirror.example.org/LeyesBiblio" {
		t.Errorf("Expected overridden base URL, got %q", cfg.Archive.BaseURL)
	}
	if cfg.Fetch.RateLimit != 250*time.Millisecond {
		t.Errorf("Expected 250ms rate limit, got %v", cfg.Fetch.RateLimit)
	}
	if cfg.Fetch.MaxRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", cfg.Fetch.MaxRetries)
	}
	if cfg.Store.Backend != BackendMongo {
		t.Errorf("Expected mongo backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.MongoDatabase != "statutes" {
		t.Errorf("Expected statutes database, got %q", cfg.Store.MongoDatabase)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Fetch.Timeout != Default().Fetch.Timeout {
		t.Errorf("Expected default timeout to survive partial config, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Convert.WordCommand != "antiword" {
		t.Errorf("Expected default word command to survive partial config, got %q", cfg.Convert.WordCommand)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LEYESMX_WORKERS", "5")
	t.Setenv("LEYESMX_STORE_BACKEND", "mongo")
	t.Setenv("LEYESMX_FETCH_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workers != 5 {
		t.Errorf("Expected 5 workers from environment, got %d", cfg.Workers)
	}
	if cfg.Store.Backend != BackendMongo {
		t.Errorf("Expected mongo backend from environment, got %q", cfg.Store.Backend)
	}
	if cfg.Fetch.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout from environment, got %v", cfg.Fetch.Timeout)
	}
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("workers: 4\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("LEYESMX_WORKERS", "8")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("Expected environment to win over config file, got %d workers", cfg.Workers)
	}
}

func TestWriteExampleRoundTrips(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteExample(configPath); err != nil {
		t.Fatalf("WriteExample failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed on example config: %v", err)
	}

	// The example documents the defaults; parsing it back must not change
	// any setting.
	if *cfg != *Default() {
		t.Errorf("Expected example config to equal defaults, got %+v", cfg)
	}
}

func TestWriteExampleRefusesOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("workers: 1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := WriteExample(configPath); err == nil {
		t.Fatal("Expected error when example config already exists, got nil")
	}
}

func TestClientConfigCreatesCacheDir(t *testing.T) {
	cfg := Default()
	cfg.Fetch.CacheDir = filepath.Join(t.TempDir(), "cache")

	clientConfig, err := cfg.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig failed: %v", err)
	}

	if clientConfig.Cache == nil {
		t.Error("Expected a disk cache when cache_dir is set")
	}
	if _, err := os.Stat(cfg.Fetch.CacheDir); err != nil {
		t.Errorf("Expected cache directory to exist: %v", err)
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "etcd"

	_, err := cfg.OpenStore(context.Background())
	if err == nil {
		t.Fatal("Expected error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "etcd") {
		t.Errorf("Expected error to name the backend, got %q", err.Error())
	}
}
