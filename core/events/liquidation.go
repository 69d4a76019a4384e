package events

import (
	"math/big"
	"strconv"

	"stablecore/core/types"
	"stablecore/crypto"
)

const (
	// TypeLiquidationExecuted is emitted after a liquidation commits.
	TypeLiquidationExecuted = "liquidation.executed"
	// TypeProtocolFeeCollected is emitted when the protocol settles a
	// self-liquidation and routes the residual fee.
	TypeProtocolFeeCollected = "liquidation.protocolFee"
	// TypeScanCompleted is emitted after an automation scan window finishes.
	TypeScanCompleted = "liquidation.scanCompleted"
)

// LiquidationExecuted captures the outcome of a committed liquidation. The
// addresses keep their original bech32 prefix so module treasuries acting as
// liquidator render as such.
type LiquidationExecuted struct {
	Liquidator  crypto.Address
	User        crypto.Address
	SeizedAsset string
	DebtAsset   string
	DebtRepaid  *big.Int
	ToProtocol  bool
}

// EventType satisfies the Event interface.
func (LiquidationExecuted) EventType() string { return TypeLiquidationExecuted }

// Event converts the structured payload into a broadcastable event.
func (e LiquidationExecuted) Event() *types.Event {
	attrs := map[string]string{
		"liquidator":  e.Liquidator.String(),
		"user":        e.User.String(),
		"seizedAsset": e.SeizedAsset,
		"debtAsset":   e.DebtAsset,
		"debtRepaid":  formatAmount(e.DebtRepaid),
		"toProtocol":  strconv.FormatBool(e.ToProtocol),
	}
	return &types.Event{Type: TypeLiquidationExecuted, Attributes: attrs}
}

// ProtocolFeeCollected captures the fee routed to the automation funding
// account after a protocol self-liquidation settled.
type ProtocolFeeCollected struct {
	Asset        string
	FeeAmount    *big.Int
	ShortfallUsd *big.Int
}

// EventType satisfies the Event interface.
func (ProtocolFeeCollected) EventType() string { return TypeProtocolFeeCollected }

// Event converts the structured payload into a broadcastable event.
func (e ProtocolFeeCollected) Event() *types.Event {
	attrs := map[string]string{
		"asset":        e.Asset,
		"feeAmount":    formatAmount(e.FeeAmount),
		"shortfallUsd": formatAmount(e.ShortfallUsd),
	}
	return &types.Event{Type: TypeProtocolFeeCollected, Attributes: attrs}
}

// ScanCompleted summarises an automation scan window.
type ScanCompleted struct {
	RunID   string
	Offset  uint64
	Flagged int
	Total   uint64
}

// EventType satisfies the Event interface.
func (ScanCompleted) EventType() string { return TypeScanCompleted }

// Event converts the structured payload into a broadcastable event.
func (e ScanCompleted) Event() *types.Event {
	attrs := map[string]string{
		"runId":   e.RunID,
		"offset":  strconv.FormatUint(e.Offset, 10),
		"flagged": strconv.Itoa(e.Flagged),
		"total":   strconv.FormatUint(e.Total, 10),
	}
	return &types.Event{Type: TypeScanCompleted, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
