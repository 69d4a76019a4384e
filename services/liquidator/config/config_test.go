package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :9000 "
module_config: "liquidation.toml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.ScanInterval.Duration != 30*time.Second {
		t.Fatalf("unexpected scan interval: %s", cfg.ScanInterval.Duration)
	}
	if cfg.ScanWindow != 100 {
		t.Fatalf("unexpected scan window: %d", cfg.ScanWindow)
	}
	if cfg.ProtocolJobID != "liquidation-treasury" {
		t.Fatalf("unexpected job id: %q", cfg.ProtocolJobID)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: ":9100"
data_dir: "/var/lib/liquidator"
module_config: "liquidation.toml"
scan_interval: 2m
scan_window: 250
protocol_job_id: "keeper-main"
prices:
  ETH: "2000000000000000000000"
  USDC: "1000000000000000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ScanInterval.Duration != 2*time.Minute {
		t.Fatalf("unexpected scan interval: %s", cfg.ScanInterval.Duration)
	}
	if cfg.ScanWindow != 250 {
		t.Fatalf("unexpected scan window: %d", cfg.ScanWindow)
	}
	if cfg.ProtocolJobID != "keeper-main" {
		t.Fatalf("unexpected job id: %q", cfg.ProtocolJobID)
	}
	if len(cfg.Prices) != 2 {
		t.Fatalf("unexpected price count: %d", len(cfg.Prices))
	}
}

func TestLoadConfigRejectsShortInterval(t *testing.T) {
	path := writeConfig(t, `
scan_interval: 200ms
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected rejection for sub-second interval")
	}
}

func TestLoadConfigRejectsEmptyQuote(t *testing.T) {
	path := writeConfig(t, `
prices:
  ETH: "  "
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected rejection for empty quote")
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
