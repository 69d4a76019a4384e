package liquidation

import (
	"math/big"
	"sync"

	"stablecore/core/events"
	"stablecore/crypto"
	nativecommon "stablecore/native/common"
)

const moduleName = "liquidation"

// engineState is the narrow position-ledger surface the engine consumes. The
// ledger owns all balance storage; the engine only reads and issues mutation
// commands, bracketed by snapshots so a failed liquidation rolls back whole.
type engineState interface {
	CollateralBalance(user crypto.Address, asset string) (*big.Int, error)
	BorrowedAmount(user crypto.Address, asset string) (*big.Int, error)
	TokenBalance(addr crypto.Address, asset string) (*big.Int, error)
	UsdValue(asset string, amount *big.Int) (*big.Int, error)
	TokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error)
	AccountCollateralValueInUsd(user crypto.Address) (*big.Int, error)
	UserBatch(window, offset uint64) ([]crypto.Address, uint64, error)
	WithdrawCollateral(user, recipient crypto.Address, asset string, amount *big.Int) error
	PaybackBorrowed(payer, user crypto.Address, asset string, amount *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int) error
	DiscardSnapshot(id int)
}

// SwapRouter executes settlement swaps with an explicit minimum-output bound.
type SwapRouter interface {
	SwapExactInputSingle(owner crypto.Address, tokenIn, tokenOut string, amountIn, minAmountOut *big.Int) (*big.Int, error)
}

// FundingRegistry receives the protocol fee to keep the automation scheduler
// funded.
type FundingRegistry interface {
	AddFunds(jobID string, amount *big.Int) error
	FundingToken() string
}

// Engine orchestrates liquidations: it validates requests, runs the bonus
// waterfall, decides the settlement recipient, executes the ledger mutations
// and verifies the position improved.
type Engine struct {
	mu sync.Mutex

	state        engineState
	registry     *AssetRegistry
	params       RiskParameters
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	router       SwapRouter
	funding      FundingRegistry
	protocolAddr crypto.Address
	jobID        string
}

// NewEngine constructs a liquidation engine for the given protocol treasury
// address, asset registry and risk parameters.
func NewEngine(protocolAddr crypto.Address, registry *AssetRegistry, params RiskParameters) *Engine {
	if params.MinimumHealthFactor == nil {
		params.MinimumHealthFactor = new(big.Int).Set(precision)
	}
	return &Engine{
		protocolAddr: protocolAddr,
		registry:     registry,
		params:       params,
		emitter:      events.NoopEmitter{},
	}
}

// SetState wires the engine to the external position ledger.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the governance pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetRouter wires the swap router used during protocol settlement.
func (e *Engine) SetRouter(router SwapRouter) { e.router = router }

// SetFundingRegistry wires the automation funding registry and the job the
// protocol fee is deposited against.
func (e *Engine) SetFundingRegistry(funding FundingRegistry, jobID string) {
	e.funding = funding
	e.jobID = jobID
}

// ProtocolAddress returns the treasury address acting as the protocol
// liquidator.
func (e *Engine) ProtocolAddress() crypto.Address { return e.protocolAddr }

// Liquidate lets a market liquidator repay part of an unhealthy user's debt
// in exchange for discounted collateral. The call is atomic: every mutation
// commits or none do.
func (e *Engine) Liquidate(caller, user crypto.Address, seizedAsset, debtAsset string, repayAmount *big.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidate(Request{
		Caller:      caller,
		User:        user,
		SeizedAsset: seizedAsset,
		DebtAsset:   debtAsset,
		RepayAmount: repayAmount,
	})
}

// ProtocolLiquidate runs a liquidation with the protocol itself as the
// liquidator, settling seized collateral through the swap router. It is used
// for positions that cannot pay a market bonus.
func (e *Engine) ProtocolLiquidate(user crypto.Address, seizedAsset, debtAsset string, repayAmount *big.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidate(Request{
		Caller:            e.protocolAddr,
		User:              user,
		SeizedAsset:       seizedAsset,
		DebtAsset:         debtAsset,
		RepayAmount:       repayAmount,
		protocolInitiated: true,
	})
}

func (e *Engine) liquidate(req Request) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}

	// Input validation, before any price or balance read. Each failure is a
	// distinct error and the order is part of the contract.
	if req.RepayAmount == nil || req.RepayAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !e.registry.Contains(req.SeizedAsset) || !e.registry.Contains(req.DebtAsset) {
		return nil, ErrAssetNotAllowed
	}
	if req.User.IsZero() {
		return nil, ErrZeroAddress
	}
	if req.Caller.Equal(req.User) {
		return nil, ErrSelfLiquidation
	}
	// The treasury only liquidates through the settlement path; a plain
	// market call as the protocol would leave seized collateral unsettled.
	if !req.protocolInitiated && req.Caller.Equal(e.protocolAddr) {
		return nil, ErrUnauthorized
	}

	// State checks, after reads but before any mutation.
	debt, err := e.state.BorrowedAmount(req.User, req.DebtAsset)
	if err != nil {
		return nil, err
	}
	if debt.Sign() == 0 {
		return nil, ErrNoDebt
	}
	if req.RepayAmount.Cmp(debt) > 0 {
		return nil, ErrRepayExceedsDebt
	}
	if !req.protocolInitiated {
		balance, err := e.state.TokenBalance(req.Caller, req.DebtAsset)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(req.RepayAmount) < 0 {
			return nil, ErrInsufficientBalance
		}
	}

	healthBefore, err := e.HealthFactor(req.User)
	if err != nil {
		return nil, err
	}
	if healthBefore.Cmp(e.params.MinimumHealthFactor) >= 0 {
		return nil, ErrPositionHealthy
	}

	debtUsd, err := e.state.UsdValue(req.DebtAsset, req.RepayAmount)
	if err != nil {
		return nil, err
	}
	breakdown, err := e.computeBonusWaterfall(req.User, req.SeizedAsset, debtUsd)
	if err != nil {
		return nil, err
	}
	// A position that cannot pay the full bonus is reserved for protocol
	// self-liquidation; a market liquidator repaying it would receive less
	// than the promised incentive.
	if !req.protocolInitiated && !breakdown.Sufficient() {
		return nil, ErrBonusShortfall
	}
	recipient := settlementRecipient(req.Caller, e.protocolAddr, breakdown.Sufficient())
	toProtocol := recipient.Equal(e.protocolAddr)

	debtInSeized, err := e.state.TokenAmountFromUsd(req.SeizedAsset, debtUsd)
	if err != nil {
		return nil, err
	}
	bonusInSeized, err := e.state.TokenAmountFromUsd(req.SeizedAsset, breakdown.FromPrimaryUsd)
	if err != nil {
		return nil, err
	}
	seizePrimary := new(big.Int).Add(debtInSeized, bonusInSeized)
	primaryBalance, err := e.state.CollateralBalance(req.User, req.SeizedAsset)
	if err != nil {
		return nil, err
	}
	if seizePrimary.Cmp(primaryBalance) > 0 {
		seizePrimary = new(big.Int).Set(primaryBalance)
	}

	receipt := &Receipt{
		Liquidator:        req.Caller,
		User:              req.User,
		SeizedAsset:       req.SeizedAsset,
		DebtAsset:         req.DebtAsset,
		DebtRepaid:        new(big.Int).Set(req.RepayAmount),
		SeizedPrimary:     seizePrimary,
		SecondarySeizures: breakdown.Secondary,
		Recipient:         recipient,
		ToProtocol:        toProtocol,
		HealthBefore:      healthBefore,
		Bonus:             breakdown,
	}

	// Mutation stage. Collateral is seized before the repayment is credited
	// so a reentrant call cannot repay debt and abort the seizure within the
	// same transaction.
	snap := e.state.Snapshot()
	abort := func(cause error) (*Receipt, error) {
		if revertErr := e.state.RevertToSnapshot(snap); revertErr != nil {
			return nil, revertErr
		}
		return nil, cause
	}

	if seizePrimary.Sign() > 0 {
		if err := e.state.WithdrawCollateral(req.User, recipient, req.SeizedAsset, seizePrimary); err != nil {
			return abort(err)
		}
	}
	for _, seizure := range breakdown.Secondary {
		if err := e.state.WithdrawCollateral(req.User, recipient, seizure.Asset, seizure.TokenAmount); err != nil {
			return abort(err)
		}
	}
	if err := e.state.PaybackBorrowed(req.Caller, req.User, req.DebtAsset, req.RepayAmount); err != nil {
		return abort(err)
	}

	if toProtocol {
		if err := e.settleProtocolSeizure(receipt); err != nil {
			return abort(err)
		}
	}

	healthAfter, err := e.HealthFactor(req.User)
	if err != nil {
		return abort(err)
	}
	if healthAfter.Cmp(healthBefore) <= 0 {
		return abort(ErrHealthNotImproved)
	}
	receipt.HealthAfter = healthAfter

	if !req.protocolInitiated {
		callerHealth, err := e.HealthFactor(req.Caller)
		if err != nil {
			return abort(err)
		}
		if callerHealth.Cmp(e.params.MinimumHealthFactor) < 0 {
			return abort(ErrLiquidatorHealthBroken)
		}
	}

	e.state.DiscardSnapshot(snap)
	e.emitter.Emit(events.LiquidationExecuted{
		Liquidator:  req.Caller,
		User:        req.User,
		SeizedAsset: req.SeizedAsset,
		DebtAsset:   req.DebtAsset,
		DebtRepaid:  receipt.DebtRepaid,
		ToProtocol:  toProtocol,
	})
	return receipt, nil
}

// settlementRecipient decides who receives the seized collateral: the calling
// liquidator when the bonus is fully fundable, the protocol otherwise.
func settlementRecipient(caller, protocol crypto.Address, bonusSufficient bool) crypto.Address {
	if bonusSufficient {
		return caller
	}
	return protocol
}
