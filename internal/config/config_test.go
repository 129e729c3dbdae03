package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8097 {
		t.Errorf("Server.Port = %d, want 8097", cfg.Server.Port)
	}
	if cfg.Server.Address() != "127.0.0.1:8097" {
		t.Errorf("Address() = %q", cfg.Server.Address())
	}
	if cfg.Sync.CatalogTTLDays != 3 || cfg.Sync.ItemsTTLDays != 1 {
		t.Errorf("TTLs = %d/%d, want 3/1", cfg.Sync.CatalogTTLDays, cfg.Sync.ItemsTTLDays)
	}
	if cfg.Sync.RequestInterval != 3*time.Second {
		t.Errorf("RequestInterval = %v", cfg.Sync.RequestInterval)
	}
	if cfg.Solverr.Endpoint != "" {
		t.Errorf("Solverr.Endpoint = %q, want empty", cfg.Solverr.Endpoint)
	}
	if cfg.Scheduler.Enabled {
		t.Error("scheduler enabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  host: 0.0.0.0
  port: 9000
sync:
  catalog_ttl_days: 7
  request_interval: 5s
trackers:
  baibako:
    username: alice
    password: secret
    serial_tab: hd1080
  newstudio:
    username: bob
    password: hunter2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Sync.CatalogTTLDays != 7 {
		t.Errorf("CatalogTTLDays = %d, want 7", cfg.Sync.CatalogTTLDays)
	}
	// Untouched keys keep their defaults.
	if cfg.Sync.ItemsTTLDays != 1 {
		t.Errorf("ItemsTTLDays = %d, want 1", cfg.Sync.ItemsTTLDays)
	}
	if cfg.Sync.RequestInterval != 5*time.Second {
		t.Errorf("RequestInterval = %v", cfg.Sync.RequestInterval)
	}

	baibako, ok := cfg.Tracker("baibako")
	if !ok || baibako.Username != "alice" || baibako.SerialTab != "hd1080" {
		t.Errorf("Tracker(baibako) = (%+v, %v)", baibako, ok)
	}
	if _, ok := cfg.Tracker("alexfilm"); ok {
		t.Error("Tracker(alexfilm) unexpectedly configured")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRACKERSYNC_SERVER_PORT", "9123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9123 {
		t.Errorf("Server.Port = %d, want 9123 from environment", cfg.Server.Port)
	}
}
