package liquidation

import (
	"math/big"

	"stablecore/crypto"
)

// computeBonusWaterfall determines how the liquidation incentive for a given
// repaid debt value is funded: first from the seized asset's excess over the
// debt value, then proportionally from the user's remaining collateral.
//
// The secondary pass values every other registry asset before any share is
// taken, so the proportional denominator is fixed for the whole distribution
// and iteration order follows the registry exactly.
func (e *Engine) computeBonusWaterfall(user crypto.Address, primary string, debtUsd *big.Int) (*BonusBreakdown, error) {
	breakdown := &BonusBreakdown{
		DebtUsd:          new(big.Int).Set(debtUsd),
		FromPrimaryUsd:   big.NewInt(0),
		FromSecondaryUsd: big.NewInt(0),
	}

	needed := new(big.Int).Mul(debtUsd, new(big.Int).SetUint64(e.params.LiquidationBonus))
	needed.Quo(needed, bonusPrecision)
	breakdown.NeededUsd = needed

	primaryBalance, err := e.state.CollateralBalance(user, primary)
	if err != nil {
		return nil, err
	}
	primaryUsd, err := e.state.UsdValue(primary, primaryBalance)
	if err != nil {
		return nil, err
	}

	excess := new(big.Int).Sub(primaryUsd, debtUsd)
	if excess.Sign() < 0 {
		excess.SetInt64(0)
	}
	fromPrimary := excess
	if fromPrimary.Cmp(needed) > 0 {
		fromPrimary = new(big.Int).Set(needed)
	}
	breakdown.FromPrimaryUsd = fromPrimary

	if fromPrimary.Cmp(needed) >= 0 {
		return breakdown, nil
	}
	remaining := new(big.Int).Sub(needed, fromPrimary)

	// Value every other asset up front; the denominator is never mutated
	// mid-loop even as individual contributions are capped.
	type holding struct {
		asset   string
		balance *big.Int
		usd     *big.Int
	}
	var holdings []holding
	otherTotalUsd := big.NewInt(0)
	for _, asset := range e.registry.List() {
		if asset == primary {
			continue
		}
		balance, err := e.state.CollateralBalance(user, asset)
		if err != nil {
			return nil, err
		}
		if balance.Sign() == 0 {
			continue
		}
		value, err := e.state.UsdValue(asset, balance)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, holding{asset: asset, balance: balance, usd: value})
		otherTotalUsd.Add(otherTotalUsd, value)
	}
	if otherTotalUsd.Sign() == 0 {
		return breakdown, nil
	}

	collected := big.NewInt(0)
	for _, h := range holdings {
		share := new(big.Int).Mul(remaining, h.usd)
		share.Quo(share, otherTotalUsd)
		if share.Sign() == 0 {
			continue
		}
		tokens, err := e.state.TokenAmountFromUsd(h.asset, share)
		if err != nil {
			return nil, err
		}
		if tokens.Cmp(h.balance) > 0 {
			tokens = new(big.Int).Set(h.balance)
		}
		if tokens.Sign() == 0 {
			continue
		}
		// Re-derive the USD contribution from the capped token amount so a
		// balance-limited asset never over-claims its share.
		contributed, err := e.state.UsdValue(h.asset, tokens)
		if err != nil {
			return nil, err
		}
		if contributed.Sign() == 0 {
			continue
		}
		breakdown.Secondary = append(breakdown.Secondary, SecondarySeizure{
			Asset:       h.asset,
			TokenAmount: tokens,
			UsdValue:    contributed,
		})
		collected.Add(collected, contributed)
	}
	breakdown.FromSecondaryUsd = collected
	return breakdown, nil
}

// PreviewBonus dry-runs the waterfall for the user's full outstanding debt in
// debtAsset against seizedAsset as the primary collateral. It performs no
// mutation and is used by the automation scanner to decide whether a market
// liquidator would be adequately paid.
func (e *Engine) PreviewBonus(user crypto.Address, seizedAsset, debtAsset string) (*BonusBreakdown, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.registry.Contains(seizedAsset) || !e.registry.Contains(debtAsset) {
		return nil, ErrAssetNotAllowed
	}
	borrowed, err := e.state.BorrowedAmount(user, debtAsset)
	if err != nil {
		return nil, err
	}
	if borrowed.Sign() == 0 {
		return nil, ErrNoDebt
	}
	debtUsd, err := e.state.UsdValue(debtAsset, borrowed)
	if err != nil {
		return nil, err
	}
	return e.computeBonusWaterfall(user, seizedAsset, debtUsd)
}
