package liquidation

import (
	"math/big"

	"stablecore/core/events"
)

// settleProtocolSeizure converts a protocol-received seizure back into useful
// balances: enough of the seized asset is swapped into the debt asset to
// square the treasury for the repayment it just funded, and the remainder
// (the protocol fee) is swapped into the automation funding currency and
// deposited so the scheduler stays paid.
//
// Every swap carries a minimum-output bound derived from the oracle price
// less the configured slippage tolerance; an execution below the bound fails
// the whole liquidation.
func (e *Engine) settleProtocolSeizure(receipt *Receipt) error {
	if e.router == nil {
		return ErrNilRouter
	}
	if e.funding == nil {
		return ErrNilFunding
	}

	debtUsd, err := e.state.UsdValue(receipt.DebtAsset, receipt.DebtRepaid)
	if err != nil {
		return err
	}
	debtLegTokens, err := e.state.TokenAmountFromUsd(receipt.SeizedAsset, debtUsd)
	if err != nil {
		return err
	}
	if debtLegTokens.Cmp(receipt.SeizedPrimary) > 0 {
		debtLegTokens = new(big.Int).Set(receipt.SeizedPrimary)
	}
	if debtLegTokens.Sign() > 0 {
		if _, err := e.swapWithBound(receipt.SeizedAsset, receipt.DebtAsset, debtLegTokens); err != nil {
			return err
		}
	}

	fundingToken := e.funding.FundingToken()
	totalFunding := big.NewInt(0)

	feeTokens := new(big.Int).Sub(receipt.SeizedPrimary, debtLegTokens)
	if feeTokens.Sign() > 0 {
		out, err := e.fundingLeg(receipt.SeizedAsset, fundingToken, feeTokens)
		if err != nil {
			return err
		}
		totalFunding.Add(totalFunding, out)
	}
	for _, seizure := range receipt.SecondarySeizures {
		out, err := e.fundingLeg(seizure.Asset, fundingToken, seizure.TokenAmount)
		if err != nil {
			return err
		}
		totalFunding.Add(totalFunding, out)
	}

	if totalFunding.Sign() > 0 {
		if err := e.funding.AddFunds(e.jobID, totalFunding); err != nil {
			return err
		}
	}

	shortfall := new(big.Int).Sub(receipt.Bonus.NeededUsd, receipt.Bonus.CollectedUsd())
	if shortfall.Sign() < 0 {
		shortfall.SetInt64(0)
	}
	e.emitter.Emit(events.ProtocolFeeCollected{
		Asset:        fundingToken,
		FeeAmount:    totalFunding,
		ShortfallUsd: shortfall,
	})
	return nil
}

// fundingLeg converts a seized amount into the funding token, passing amounts
// already denominated in it straight through.
func (e *Engine) fundingLeg(asset, fundingToken string, amount *big.Int) (*big.Int, error) {
	if asset == fundingToken {
		return new(big.Int).Set(amount), nil
	}
	return e.swapWithBound(asset, fundingToken, amount)
}

// swapWithBound executes a settlement swap with a minimum output derived from
// the oracle price and the configured slippage tolerance.
func (e *Engine) swapWithBound(tokenIn, tokenOut string, amountIn *big.Int) (*big.Int, error) {
	usdIn, err := e.state.UsdValue(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	expectedOut, err := e.state.TokenAmountFromUsd(tokenOut, usdIn)
	if err != nil {
		return nil, err
	}
	minOut := new(big.Int).Mul(expectedOut, new(big.Int).SetUint64(10_000-e.params.SlippageBps))
	minOut.Quo(minOut, basisPoints)

	out, err := e.router.SwapExactInputSingle(e.protocolAddr, tokenIn, tokenOut, amountIn, minOut)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Cmp(minOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	return out, nil
}
