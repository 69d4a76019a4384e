package liquidation

import "errors"

// Input validation failures, rejected before any price or balance read.
var (
	// ErrInvalidAmount rejects a zero or negative repay amount.
	ErrInvalidAmount = errors.New("liquidation: repay amount must be positive")
	// ErrAssetNotAllowed rejects assets outside the allowed registry.
	ErrAssetNotAllowed = errors.New("liquidation: asset not in allowed registry")
	// ErrZeroAddress rejects the zero user identifier.
	ErrZeroAddress = errors.New("liquidation: user address must not be zero")
	// ErrSelfLiquidation rejects a caller liquidating their own position.
	ErrSelfLiquidation = errors.New("liquidation: self-liquidation forbidden")
)

// State failures, rejected after a read but before any mutation.
var (
	// ErrNoDebt indicates the user owes nothing in the chosen debt asset.
	ErrNoDebt = errors.New("liquidation: no outstanding debt in asset")
	// ErrRepayExceedsDebt indicates the repay amount exceeds the user's debt.
	ErrRepayExceedsDebt = errors.New("liquidation: repay amount exceeds outstanding debt")
	// ErrInsufficientBalance indicates the liquidator cannot fund the repayment.
	ErrInsufficientBalance = errors.New("liquidation: liquidator balance below repay amount")
	// ErrPositionHealthy indicates the position is above the minimum health factor.
	ErrPositionHealthy = errors.New("liquidation: position not eligible")
	// ErrBonusShortfall indicates the position cannot fund the market bonus;
	// only the protocol itself may liquidate it.
	ErrBonusShortfall = errors.New("liquidation: bonus shortfall, protocol liquidation required")
)

// Post-condition and downstream failures; the whole liquidation rolls back.
var (
	// ErrHealthNotImproved indicates the liquidation failed to raise the
	// user's health factor.
	ErrHealthNotImproved = errors.New("liquidation: health factor not improved")
	// ErrLiquidatorHealthBroken indicates the repayment outflow broke the
	// caller's own position.
	ErrLiquidatorHealthBroken = errors.New("liquidation: liquidator health factor broken")
	// ErrSlippageExceeded indicates a settlement swap produced less than the
	// oracle-derived minimum.
	ErrSlippageExceeded = errors.New("liquidation: settlement swap below minimum output")
)

// Authorization and wiring failures.
var (
	// ErrUnauthorized rejects the protocol treasury on the market entry
	// point; treasury liquidations must go through ProtocolLiquidate.
	ErrUnauthorized = errors.New("liquidation: caller not authorized")
	// ErrNilState indicates the engine has no position ledger wired.
	ErrNilState = errors.New("liquidation: state not configured")
	// ErrNilRouter indicates protocol settlement has no swap router wired.
	ErrNilRouter = errors.New("liquidation: swap router not configured")
	// ErrNilFunding indicates protocol settlement has no funding registry wired.
	ErrNilFunding = errors.New("liquidation: funding registry not configured")
)
