package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime settings for the liquidator daemon.
type Config struct {
	ListenAddress string      `yaml:"listen"`
	DataDir       string      `yaml:"data_dir"`
	ModuleConfig  string      `yaml:"module_config"`
	ScanInterval  Duration    `yaml:"scan_interval"`
	ScanWindow    uint64      `yaml:"scan_window"`
	ProtocolJobID string      `yaml:"protocol_job_id"`
	Prices        PriceConfig `yaml:"prices"`
}

// PriceConfig seeds the manual price source with wei-denominated USD quotes
// per whole token.
type PriceConfig map[string]string

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8644",
		DataDir:       "./liquidator-data",
		ScanInterval:  Duration{30 * time.Second},
		ScanWindow:    100,
		ProtocolJobID: "liquidation-treasury",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8644"
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "./liquidator-data"
	}
	cfg.ModuleConfig = strings.TrimSpace(cfg.ModuleConfig)
	if cfg.ScanInterval.Duration <= 0 {
		cfg.ScanInterval = Duration{30 * time.Second}
	}
	if cfg.ScanWindow == 0 {
		cfg.ScanWindow = 100
	}
	cfg.ProtocolJobID = strings.TrimSpace(cfg.ProtocolJobID)
	if cfg.ProtocolJobID == "" {
		cfg.ProtocolJobID = "liquidation-treasury"
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.ScanInterval.Duration < time.Second {
		return fmt.Errorf("scan_interval must be at least one second, got %s", cfg.ScanInterval.Duration)
	}
	for asset, quote := range cfg.Prices {
		if strings.TrimSpace(asset) == "" {
			return fmt.Errorf("prices: empty asset symbol")
		}
		if strings.TrimSpace(quote) == "" {
			return fmt.Errorf("prices: empty quote for %s", asset)
		}
	}
	return nil
}
