package liquidation

import (
	"math/big"

	"stablecore/crypto"
)

var (
	// precision scales health factors so the minimum can be expressed in wei
	// terms (1e18 == 1.0).
	precision = big.NewInt(1_000_000_000_000_000_000)
	// thresholdPrecision is the denominator for the liquidation threshold
	// percentage.
	thresholdPrecision = big.NewInt(100)
	// bonusPrecision is the denominator for the liquidation bonus percentage.
	bonusPrecision = big.NewInt(100)
	// basisPoints is the denominator for slippage tolerances.
	basisPoints = big.NewInt(10_000)
	// maxHealthFactor is the sentinel returned for debt-free positions.
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// RiskParameters groups the governance controlled safety limits governing
// liquidations.
type RiskParameters struct {
	// LiquidationThreshold is the share of collateral value counted toward
	// solvency, expressed as a percentage (e.g. 50).
	LiquidationThreshold uint64
	// LiquidationBonus is the liquidator incentive expressed as a percentage
	// of the repaid debt value (e.g. 10).
	LiquidationBonus uint64
	// MinimumHealthFactor is the eligibility gate: positions at or above it
	// cannot be liquidated. Expressed on the 1e18 scale.
	MinimumHealthFactor *big.Int
	// SlippageBps bounds settlement swap execution relative to the oracle
	// price, in basis points (e.g. 200 for 2%).
	SlippageBps uint64
}

// Request is the ephemeral value object describing one liquidation attempt.
// It is created per call and never persisted.
type Request struct {
	Caller      crypto.Address
	User        crypto.Address
	SeizedAsset string
	DebtAsset   string
	RepayAmount *big.Int

	protocolInitiated bool
}

// SecondarySeizure records a bonus contribution drawn from a non-primary
// collateral asset.
type SecondarySeizure struct {
	Asset       string
	TokenAmount *big.Int
	UsdValue    *big.Int
}

// BonusBreakdown carries the outcome of the bonus waterfall for one
// liquidation: how much incentive is owed and where it comes from. It lives
// only for the duration of a single call.
type BonusBreakdown struct {
	// DebtUsd is the USD value of the debt being repaid.
	DebtUsd *big.Int
	// NeededUsd is the total bonus owed for the repayment.
	NeededUsd *big.Int
	// FromPrimaryUsd is the portion fundable from the seized asset's excess.
	FromPrimaryUsd *big.Int
	// FromSecondaryUsd is the portion drawn from the user's other collateral.
	FromSecondaryUsd *big.Int
	// Secondary lists the per-asset contributions in registry order.
	Secondary []SecondarySeizure
}

// CollectedUsd returns the total bonus the waterfall could fund.
func (b *BonusBreakdown) CollectedUsd() *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	total := big.NewInt(0)
	if b.FromPrimaryUsd != nil {
		total.Add(total, b.FromPrimaryUsd)
	}
	if b.FromSecondaryUsd != nil {
		total.Add(total, b.FromSecondaryUsd)
	}
	return total
}

// Sufficient reports whether the collectable bonus covers the amount owed, the
// condition under which a market liquidator is adequately incentivised.
func (b *BonusBreakdown) Sufficient() bool {
	if b == nil || b.NeededUsd == nil {
		return false
	}
	return b.CollectedUsd().Cmp(b.NeededUsd) >= 0
}

// Receipt summarises a committed liquidation.
type Receipt struct {
	Liquidator  crypto.Address
	User        crypto.Address
	SeizedAsset string
	DebtAsset   string
	DebtRepaid  *big.Int
	// SeizedPrimary is the amount of the seized asset debited from the user,
	// covering the repaid debt value plus the primary bonus leg.
	SeizedPrimary *big.Int
	// SecondarySeizures lists bonus legs drawn from other collateral assets.
	SecondarySeizures []SecondarySeizure
	// Recipient received the seized collateral.
	Recipient crypto.Address
	// ToProtocol is true when the protocol itself was the recipient.
	ToProtocol bool
	// HealthBefore and HealthAfter bracket the user's health factor.
	HealthBefore *big.Int
	HealthAfter  *big.Int
	// Bonus carries the waterfall outcome backing the recipient decision.
	Bonus *BonusBreakdown
}
