package liquidation

import (
	"fmt"
	"math/big"
	"os"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for the liquidation module.
type Config struct {
	LiquidationThreshold uint64   `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64   `toml:"LiquidationBonus"`
	MinimumHealthFactor  *big.Int `toml:"MinimumHealthFactorWei"`
	SlippageBps          uint64   `toml:"SlippageBps"`
	AllowedAssets        []string `toml:"AllowedAssets"`
}

// LoadConfig reads the module configuration from a TOML file, applies
// defaults for unset fields and validates the result. A missing file yields
// the pure defaults, which still require at least one allowed asset.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode liquidation config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat liquidation config: %w", err)
	}
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDefaults populates unset fields with the protocol defaults.
func (c *Config) EnsureDefaults() {
	if c.LiquidationThreshold == 0 {
		c.LiquidationThreshold = 50
	}
	if c.LiquidationBonus == 0 {
		c.LiquidationBonus = 10
	}
	if c.MinimumHealthFactor == nil || c.MinimumHealthFactor.Sign() == 0 {
		c.MinimumHealthFactor = new(big.Int).Set(precision)
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 200
	}
}

// Validate rejects configurations that would make every position healthy or
// every swap fail.
func (c *Config) Validate() error {
	if c.LiquidationThreshold == 0 || c.LiquidationThreshold > 100 {
		return fmt.Errorf("liquidation threshold must be in (0, 100], got %d", c.LiquidationThreshold)
	}
	if c.LiquidationBonus > 100 {
		return fmt.Errorf("liquidation bonus must not exceed 100, got %d", c.LiquidationBonus)
	}
	if c.SlippageBps >= 10_000 {
		return fmt.Errorf("slippage bps must be below 10000, got %d", c.SlippageBps)
	}
	if len(c.AllowedAssets) == 0 {
		return fmt.Errorf("at least one allowed asset is required")
	}
	return nil
}

// RiskParameters converts the configuration into engine parameters.
func (c *Config) RiskParameters() RiskParameters {
	return RiskParameters{
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		MinimumHealthFactor:  new(big.Int).Set(c.MinimumHealthFactor),
		SlippageBps:          c.SlippageBps,
	}
}
