package liquidation

import (
	"math/big"

	"stablecore/crypto"
)

// HealthFactor derives the solvency metric for a user: risk-adjusted
// collateral value over debt value, scaled by 1e18. Debt-free positions
// report the sentinel maximum and are never liquidatable.
func (e *Engine) HealthFactor(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	debtUsd, err := e.totalDebtUsd(user)
	if err != nil {
		return nil, err
	}
	if debtUsd.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	collateralUsd, err := e.state.AccountCollateralValueInUsd(user)
	if err != nil {
		return nil, err
	}
	return healthFactorFromValues(collateralUsd, debtUsd, e.params.LiquidationThreshold), nil
}

func healthFactorFromValues(collateralUsd, debtUsd *big.Int, threshold uint64) *big.Int {
	adjusted := new(big.Int).Mul(collateralUsd, new(big.Int).SetUint64(threshold))
	adjusted.Quo(adjusted, thresholdPrecision)
	adjusted.Mul(adjusted, precision)
	return adjusted.Quo(adjusted, debtUsd)
}

// totalDebtUsd sums the USD value of the user's debt across the registry.
func (e *Engine) totalDebtUsd(user crypto.Address) (*big.Int, error) {
	total := big.NewInt(0)
	for _, asset := range e.registry.List() {
		borrowed, err := e.state.BorrowedAmount(user, asset)
		if err != nil {
			return nil, err
		}
		if borrowed.Sign() == 0 {
			continue
		}
		value, err := e.state.UsdValue(asset, borrowed)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// MinimumHealthFactor returns the liquidation eligibility threshold.
func (e *Engine) MinimumHealthFactor() *big.Int {
	return new(big.Int).Set(e.params.MinimumHealthFactor)
}

// LiquidationBonus returns the incentive percentage paid to liquidators.
func (e *Engine) LiquidationBonus() uint64 { return e.params.LiquidationBonus }

// LiquidationPrecision returns the denominator for the bonus percentage.
func (e *Engine) LiquidationPrecision() uint64 { return bonusPrecision.Uint64() }

// AllowedAssets returns the asset registry in its fixed order.
func (e *Engine) AllowedAssets() []string { return e.registry.List() }

// CollateralBalanceOfUser reads the user's pledged amount of an asset.
func (e *Engine) CollateralBalanceOfUser(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.registry.Contains(asset) {
		return nil, ErrAssetNotAllowed
	}
	return e.state.CollateralBalance(user, asset)
}

// AmountOfTokenBorrowed reads the user's outstanding debt in an asset.
func (e *Engine) AmountOfTokenBorrowed(user crypto.Address, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.registry.Contains(asset) {
		return nil, ErrAssetNotAllowed
	}
	return e.state.BorrowedAmount(user, asset)
}

// GetUsdValue converts a token amount into USD via the oracle facade.
func (e *Engine) GetUsdValue(asset string, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.registry.Contains(asset) {
		return nil, ErrAssetNotAllowed
	}
	return e.state.UsdValue(asset, amount)
}

// GetTokenAmountFromUsd converts a USD value into a token amount via the
// oracle facade.
func (e *Engine) GetTokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.registry.Contains(asset) {
		return nil, ErrAssetNotAllowed
	}
	return e.state.TokenAmountFromUsd(asset, usd)
}

// AccountCollateralValueInUsd returns the total USD value of a user's
// collateral.
func (e *Engine) AccountCollateralValueInUsd(user crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.AccountCollateralValueInUsd(user)
}

// UserBatch exposes a window of the user set to the automation scanner.
func (e *Engine) UserBatch(window, offset uint64) ([]crypto.Address, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, ErrNilState
	}
	return e.state.UserBatch(window, offset)
}
