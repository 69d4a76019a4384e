package liquidation

import (
	"errors"
	"math/big"
	"testing"

	"stablecore/crypto"
)

func TestWaterfallBonusFromPrimaryExcess(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x02)
	env.deposit(user, "ETH", tokens(1)) // $2000 against $1000 repaid
	env.borrow(user, "USDC", tokens(1000))

	breakdown, err := env.engine.PreviewBonus(user, "ETH", "USDC")
	if err != nil {
		t.Fatalf("preview bonus: %v", err)
	}
	if want := tokens(100); breakdown.NeededUsd.Cmp(want) != 0 {
		t.Fatalf("unexpected needed bonus: got %s want %s", breakdown.NeededUsd, want)
	}
	if breakdown.FromPrimaryUsd.Cmp(tokens(100)) != 0 {
		t.Fatalf("unexpected primary contribution: %s", breakdown.FromPrimaryUsd)
	}
	if breakdown.FromSecondaryUsd.Sign() != 0 {
		t.Fatalf("unexpected secondary contribution: %s", breakdown.FromSecondaryUsd)
	}
	if len(breakdown.Secondary) != 0 {
		t.Fatalf("unexpected secondary seizures: %d", len(breakdown.Secondary))
	}
	if !breakdown.Sufficient() {
		t.Fatalf("expected bonus to be fully fundable")
	}
}

func TestWaterfallSpillsToSecondaryProportionally(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x02)
	// Primary ETH pledge covers the debt plus $50 of the $100 bonus; the
	// remaining $50 splits 60/40 across WBTC and USDC holdings.
	env.deposit(user, "ETH", milliTokens(525)) // $1050
	env.deposit(user, "WBTC", milliTokens(20)) // $600
	env.deposit(user, "USDC", tokens(400))     // $400
	env.borrow(user, "USDC", tokens(1000))

	breakdown, err := env.engine.PreviewBonus(user, "ETH", "USDC")
	if err != nil {
		t.Fatalf("preview bonus: %v", err)
	}
	if breakdown.FromPrimaryUsd.Cmp(tokens(50)) != 0 {
		t.Fatalf("unexpected primary contribution: %s", breakdown.FromPrimaryUsd)
	}
	if breakdown.FromSecondaryUsd.Cmp(tokens(50)) != 0 {
		t.Fatalf("unexpected secondary contribution: %s", breakdown.FromSecondaryUsd)
	}
	if len(breakdown.Secondary) != 2 {
		t.Fatalf("expected 2 secondary seizures, got %d", len(breakdown.Secondary))
	}
	// Registry order, not holding size, fixes the output order.
	first, second := breakdown.Secondary[0], breakdown.Secondary[1]
	if first.Asset != "WBTC" || second.Asset != "USDC" {
		t.Fatalf("unexpected seizure order: %s, %s", first.Asset, second.Asset)
	}
	if want := tokens(30); first.UsdValue.Cmp(want) != 0 {
		t.Fatalf("unexpected WBTC share: got %s want %s", first.UsdValue, want)
	}
	if want := tokens(20); second.UsdValue.Cmp(want) != 0 {
		t.Fatalf("unexpected USDC share: got %s want %s", second.UsdValue, want)
	}
	// $30 at $30000/WBTC.
	if want := milliTokens(1); first.TokenAmount.Cmp(want) != 0 {
		t.Fatalf("unexpected WBTC tokens: got %s want %s", first.TokenAmount, want)
	}
	if !breakdown.Sufficient() {
		t.Fatalf("expected bonus to be fully fundable")
	}
}

func TestWaterfallCapsSecondaryAtBalance(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x02)
	// Zero primary excess and only $300 of other collateral against a $500
	// bonus: the WBTC leg is capped at its balance and the bonus falls short.
	env.deposit(user, "ETH", milliTokens(2500)) // $5000
	env.deposit(user, "WBTC", milliTokens(10))  // $300
	env.borrow(user, "USDC", tokens(5000))

	breakdown, err := env.engine.PreviewBonus(user, "ETH", "USDC")
	if err != nil {
		t.Fatalf("preview bonus: %v", err)
	}
	if breakdown.FromPrimaryUsd.Sign() != 0 {
		t.Fatalf("unexpected primary contribution: %s", breakdown.FromPrimaryUsd)
	}
	if len(breakdown.Secondary) != 1 {
		t.Fatalf("expected 1 secondary seizure, got %d", len(breakdown.Secondary))
	}
	seizure := breakdown.Secondary[0]
	if seizure.TokenAmount.Cmp(milliTokens(10)) != 0 {
		t.Fatalf("seizure not capped at balance: %s", seizure.TokenAmount)
	}
	if want := tokens(300); seizure.UsdValue.Cmp(want) != 0 {
		t.Fatalf("unexpected capped value: got %s want %s", seizure.UsdValue, want)
	}
	if breakdown.Sufficient() {
		t.Fatalf("expected bonus shortfall")
	}
	if want := tokens(300); breakdown.CollectedUsd().Cmp(want) != 0 {
		t.Fatalf("unexpected collected total: got %s want %s", breakdown.CollectedUsd(), want)
	}
}

func TestWaterfallDenominatorFixedBeforeSeizure(t *testing.T) {
	// Three equally priced stables share the spill; each contribution is
	// computed against the total valued up front, so the shares never exceed
	// the remaining bonus even after truncation.
	order := []string{"ETH", "DAI", "USDT", "USDC"}
	env := newTestEnvWithAssets(t, order, map[string]int64{
		"ETH":  2000,
		"DAI":  1,
		"USDT": 1,
		"USDC": 1,
	})
	user := makeAddress(crypto.AccountPrefix, 0x02)
	env.deposit(user, "ETH", milliTokens(500)) // exactly the repaid value
	env.deposit(user, "DAI", tokens(333))
	env.deposit(user, "USDT", tokens(333))
	env.deposit(user, "USDC", tokens(334))
	env.borrow(user, "USDC", tokens(1000))

	breakdown, err := env.engine.PreviewBonus(user, "ETH", "USDC")
	if err != nil {
		t.Fatalf("preview bonus: %v", err)
	}
	remaining := new(big.Int).Set(breakdown.NeededUsd) // zero primary excess
	collected := breakdown.FromSecondaryUsd
	if collected.Cmp(remaining) > 0 {
		t.Fatalf("secondary contributions exceed the bonus owed: %s > %s", collected, remaining)
	}
	// Truncation loses at most one unit per holding.
	gap := new(big.Int).Sub(remaining, collected)
	if gap.Cmp(big.NewInt(3)) > 0 {
		t.Fatalf("rounding gap too large: %s", gap)
	}
	sum := big.NewInt(0)
	for _, seizure := range breakdown.Secondary {
		sum.Add(sum, seizure.UsdValue)
	}
	if sum.Cmp(collected) != 0 {
		t.Fatalf("per-asset values do not sum to the secondary total: %s vs %s", sum, collected)
	}
}

func TestPreviewBonusRequiresDebt(t *testing.T) {
	env := newTestEnv(t)
	user := makeAddress(crypto.AccountPrefix, 0x02)
	env.deposit(user, "ETH", tokens(1))

	if _, err := env.engine.PreviewBonus(user, "ETH", "USDC"); !errors.Is(err, ErrNoDebt) {
		t.Fatalf("got %v want %v", err, ErrNoDebt)
	}
	if _, err := env.engine.PreviewBonus(user, "DOGE", "USDC"); !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("got %v want %v", err, ErrAssetNotAllowed)
	}
}
