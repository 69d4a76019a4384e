package events

import (
	"math/big"
	"strings"
	"testing"

	"stablecore/crypto"
)

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

func TestLiquidationExecutedEventKeepsAddressPrefixes(t *testing.T) {
	treasury := makeAddress(crypto.ModulePrefix, 0xFF)
	user := makeAddress(crypto.AccountPrefix, 0x01)

	evt := LiquidationExecuted{
		Liquidator:  treasury,
		User:        user,
		SeizedAsset: "ETH",
		DebtAsset:   "USDC",
		DebtRepaid:  big.NewInt(500),
		ToProtocol:  true,
	}.Event()

	if evt.Type != TypeLiquidationExecuted {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	// A module treasury acting as liquidator must render under the module
	// prefix, not be re-encoded as a participant account.
	if got := evt.Attributes["liquidator"]; !strings.HasPrefix(got, string(crypto.ModulePrefix)+"1") {
		t.Fatalf("liquidator lost module prefix: %s", got)
	}
	if got, want := evt.Attributes["liquidator"], treasury.String(); got != want {
		t.Fatalf("unexpected liquidator: got %s want %s", got, want)
	}
	if got, want := evt.Attributes["user"], user.String(); got != want {
		t.Fatalf("unexpected user: got %s want %s", got, want)
	}
	if got := evt.Attributes["debtRepaid"]; got != "500" {
		t.Fatalf("unexpected repaid amount: %s", got)
	}
	if got := evt.Attributes["toProtocol"]; got != "true" {
		t.Fatalf("unexpected settlement flag: %s", got)
	}
}

func TestProtocolFeeCollectedEventFormatsAmounts(t *testing.T) {
	evt := ProtocolFeeCollected{
		Asset:        "USDC",
		FeeAmount:    big.NewInt(50),
		ShortfallUsd: nil,
	}.Event()

	if evt.Type != TypeProtocolFeeCollected {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if got := evt.Attributes["feeAmount"]; got != "50" {
		t.Fatalf("unexpected fee amount: %s", got)
	}
	if got := evt.Attributes["shortfallUsd"]; got != "0" {
		t.Fatalf("nil shortfall should format as zero, got %s", got)
	}
}

func TestScanCompletedEventAttributes(t *testing.T) {
	evt := ScanCompleted{RunID: "run-1", Offset: 100, Flagged: 3, Total: 250}.Event()

	if evt.Type != TypeScanCompleted {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	want := map[string]string{"runId": "run-1", "offset": "100", "flagged": "3", "total": "250"}
	for key, value := range want {
		if got := evt.Attributes[key]; got != value {
			t.Fatalf("attribute %s: got %s want %s", key, got, value)
		}
	}
}
