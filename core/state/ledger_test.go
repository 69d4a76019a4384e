package state

import (
	"math/big"
	"testing"

	"stablecore/crypto"
	"stablecore/native/oracle"
)

var wadUnit = big.NewInt(1_000_000_000_000_000_000)

func tokens(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), wadUnit)
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	prices := oracle.NewManualOracle()
	if err := prices.SetPrice("ETH", tokens(2000)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := prices.SetPrice("USDC", tokens(1)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	ledger := NewLedger(prices)
	ledger.RegisterAsset("ETH")
	ledger.RegisterAsset("USDC")
	return ledger
}

func TestDepositRequiresFreeBalance(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)

	if err := ledger.DepositCollateral(user, "ETH", tokens(1)); err == nil {
		t.Fatalf("expected rejection without a free balance")
	}
	if err := ledger.Credit(user, "ETH", tokens(1)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.DepositCollateral(user, "ETH", tokens(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	pledged, err := ledger.CollateralBalance(user, "ETH")
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if pledged.Cmp(tokens(1)) != 0 {
		t.Fatalf("unexpected pledge: %s", pledged)
	}
	free, err := ledger.TokenBalance(user, "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if free.Sign() != 0 {
		t.Fatalf("free balance not debited: %s", free)
	}
}

func TestBorrowBooksDebtAndCreditsTokens(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)

	if err := ledger.Borrow(user, "USDC", tokens(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	debt, err := ledger.BorrowedAmount(user, "USDC")
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if debt.Cmp(tokens(500)) != 0 {
		t.Fatalf("unexpected debt: %s", debt)
	}
	free, err := ledger.TokenBalance(user, "USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if free.Cmp(tokens(500)) != 0 {
		t.Fatalf("borrowed tokens not credited: %s", free)
	}
}

func TestWithdrawCollateralMovesToRecipient(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)
	recipient := makeAddress(0x02)

	if err := ledger.Credit(user, "ETH", tokens(2)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.DepositCollateral(user, "ETH", tokens(2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := ledger.WithdrawCollateral(user, recipient, "ETH", tokens(3)); err == nil {
		t.Fatalf("expected rejection above the pledge")
	}
	if err := ledger.WithdrawCollateral(user, recipient, "ETH", tokens(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	got, err := ledger.TokenBalance(recipient, "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Cmp(tokens(1)) != 0 {
		t.Fatalf("recipient not credited: %s", got)
	}
}

func TestPaybackBorrowedDebitsPayer(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)
	payer := makeAddress(0x02)

	if err := ledger.Borrow(user, "USDC", tokens(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := ledger.PaybackBorrowed(payer, user, "USDC", tokens(100)); err == nil {
		t.Fatalf("expected rejection without payer funds")
	}
	if err := ledger.Credit(payer, "USDC", tokens(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.PaybackBorrowed(payer, user, "USDC", tokens(600)); err == nil {
		t.Fatalf("expected rejection above outstanding debt")
	}
	if err := ledger.PaybackBorrowed(payer, user, "USDC", tokens(300)); err != nil {
		t.Fatalf("payback: %v", err)
	}
	debt, err := ledger.BorrowedAmount(user, "USDC")
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if debt.Cmp(tokens(200)) != 0 {
		t.Fatalf("unexpected remaining debt: %s", debt)
	}
	balance, err := ledger.TokenBalance(payer, "USDC")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(tokens(700)) != 0 {
		t.Fatalf("payer not debited: %s", balance)
	}
}

func TestSnapshotRevertRestoresState(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)
	other := makeAddress(0x02)

	if err := ledger.Credit(user, "ETH", tokens(2)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.DepositCollateral(user, "ETH", tokens(2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := ledger.Borrow(user, "USDC", tokens(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	snap := ledger.Snapshot()
	if err := ledger.WithdrawCollateral(user, other, "ETH", tokens(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := ledger.Borrow(user, "USDC", tokens(400)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := ledger.RevertToSnapshot(snap); err != nil {
		t.Fatalf("revert: %v", err)
	}

	pledged, err := ledger.CollateralBalance(user, "ETH")
	if err != nil {
		t.Fatalf("collateral: %v", err)
	}
	if pledged.Cmp(tokens(2)) != 0 {
		t.Fatalf("collateral not restored: %s", pledged)
	}
	debt, err := ledger.BorrowedAmount(user, "USDC")
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if debt.Cmp(tokens(100)) != 0 {
		t.Fatalf("debt not restored: %s", debt)
	}
	otherBalance, err := ledger.TokenBalance(other, "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if otherBalance.Sign() != 0 {
		t.Fatalf("recipient balance not restored: %s", otherBalance)
	}

	if err := ledger.RevertToSnapshot(snap); err == nil {
		t.Fatalf("expected unknown snapshot after revert")
	}
}

func TestDiscardSnapshotCommits(t *testing.T) {
	ledger := newTestLedger(t)
	user := makeAddress(0x01)

	if err := ledger.Credit(user, "ETH", tokens(1)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	snap := ledger.Snapshot()
	if err := ledger.Debit(user, "ETH", tokens(1)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	ledger.DiscardSnapshot(snap)
	if err := ledger.RevertToSnapshot(snap); err == nil {
		t.Fatalf("expected discarded snapshot to be unknown")
	}
	balance, err := ledger.TokenBalance(user, "ETH")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("committed mutation lost: %s", balance)
	}
}

func TestUserBatchWindowing(t *testing.T) {
	ledger := newTestLedger(t)
	for i := 0; i < 5; i++ {
		user := makeAddress(byte(i + 1))
		if err := ledger.Credit(user, "USDC", tokens(1)); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if err := ledger.DepositCollateral(user, "USDC", tokens(1)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	batch, total, err := ledger.UserBatch(2, 0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if total != 5 || len(batch) != 2 {
		t.Fatalf("unexpected window: total=%d len=%d", total, len(batch))
	}
	if !batch[0].Equal(makeAddress(0x01)) {
		t.Fatalf("registration order not preserved: %s", batch[0].String())
	}

	batch, total, err = ledger.UserBatch(10, 3)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if total != 5 || len(batch) != 2 {
		t.Fatalf("unexpected tail window: total=%d len=%d", total, len(batch))
	}

	batch, total, err = ledger.UserBatch(10, 7)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if total != 5 || len(batch) != 0 {
		t.Fatalf("expected empty window past the end: total=%d len=%d", total, len(batch))
	}
}

func TestUsdValueRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	value, err := ledger.UsdValue("ETH", tokens(2))
	if err != nil {
		t.Fatalf("usd value: %v", err)
	}
	if value.Cmp(tokens(4000)) != 0 {
		t.Fatalf("unexpected value: %s", value)
	}
	amount, err := ledger.TokenAmountFromUsd("ETH", tokens(4000))
	if err != nil {
		t.Fatalf("token amount: %v", err)
	}
	if amount.Cmp(tokens(2)) != 0 {
		t.Fatalf("unexpected amount: %s", amount)
	}
}
