package oracle

import (
	"errors"
	"math/big"
	"strings"
	"sync"
)

var (
	// ErrPriceUnavailable indicates no price is registered for the asset.
	ErrPriceUnavailable = errors.New("oracle: price unavailable")
	// ErrInvalidPrice indicates a non-positive price submission.
	ErrInvalidPrice = errors.New("oracle: price must be positive")
)

// wad is the fixed-point scale shared by token amounts and USD values.
var wad = big.NewInt(1_000_000_000_000_000_000)

// PriceSource converts token amounts to USD values and back. Prices are
// expressed as USD per whole token scaled by 1e18; token amounts are wei.
type PriceSource interface {
	UsdValue(asset string, amount *big.Int) (*big.Int, error)
	TokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error)
}

// ManualOracle is a governance-fed price table. Production deployments feed it
// from an external adapter; tests and dev mode set prices directly.
type ManualOracle struct {
	mu     sync.RWMutex
	prices map[string]*big.Int
}

// NewManualOracle returns an empty price table.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{prices: make(map[string]*big.Int)}
}

// SetPrice records the USD price (1e18 scale) for one whole token.
func (o *ManualOracle) SetPrice(asset string, price *big.Int) error {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return ErrPriceUnavailable
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = new(big.Int).Set(price)
	return nil
}

// Price returns the registered USD price for the asset.
func (o *ManualOracle) Price(asset string) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return new(big.Int).Set(price), nil
}

// UsdValue converts a wei token amount into its USD value (1e18 scale).
func (o *ManualOracle) UsdValue(asset string, amount *big.Int) (*big.Int, error) {
	price, err := o.Price(asset)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, wad), nil
}

// TokenAmountFromUsd converts a USD value (1e18 scale) into a wei token amount.
func (o *ManualOracle) TokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error) {
	price, err := o.Price(asset)
	if err != nil {
		return nil, err
	}
	if usd == nil || usd.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int).Mul(usd, wad)
	return amount.Quo(amount, price), nil
}
