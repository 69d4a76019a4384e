package swap

import (
	"errors"
	"math/big"

	"stablecore/crypto"
	"stablecore/native/oracle"
)

var (
	// ErrNilBook indicates the router has no balance book wired.
	ErrNilBook = errors.New("swap: balance book not configured")
	// ErrSlippage indicates the executable output fell below the caller's bound.
	ErrSlippage = errors.New("swap: output below minimum")
	// ErrSameAsset rejects swaps between identical assets.
	ErrSameAsset = errors.New("swap: tokenIn and tokenOut must differ")
	// ErrInvalidAmount rejects non-positive inputs.
	ErrInvalidAmount = errors.New("swap: amount must be positive")
)

var basisPoints = big.NewInt(10_000)

// Book is the minimal balance mutation surface the router needs.
type Book interface {
	Credit(addr crypto.Address, asset string, amount *big.Int) error
	Debit(addr crypto.Address, asset string, amount *big.Int) error
}

// OracleRouter executes swaps at the oracle price less a fixed execution
// haircut. It stands in for an external AMM in tests and dev deployments; the
// haircut models pool fees plus price impact so slippage bounds are exercised
// for real.
type OracleRouter struct {
	book   Book
	prices oracle.PriceSource
	feeBps uint64
}

// NewOracleRouter constructs a router over the given balance book and price
// source. feeBps is the execution haircut in basis points.
func NewOracleRouter(book Book, prices oracle.PriceSource, feeBps uint64) *OracleRouter {
	return &OracleRouter{book: book, prices: prices, feeBps: feeBps}
}

// SwapExactInputSingle swaps amountIn of tokenIn held by owner into tokenOut,
// failing if the output would fall below minAmountOut.
func (r *OracleRouter) SwapExactInputSingle(owner crypto.Address, tokenIn, tokenOut string, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if r == nil || r.book == nil || r.prices == nil {
		return nil, ErrNilBook
	}
	if tokenIn == tokenOut {
		return nil, ErrSameAsset
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	usdIn, err := r.prices.UsdValue(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := r.prices.TokenAmountFromUsd(tokenOut, usdIn)
	if err != nil {
		return nil, err
	}
	if r.feeBps > 0 {
		haircut := new(big.Int).SetUint64(10_000 - r.feeBps)
		amountOut = amountOut.Mul(amountOut, haircut)
		amountOut = amountOut.Quo(amountOut, basisPoints)
	}
	if minAmountOut != nil && amountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippage
	}

	if err := r.book.Debit(owner, tokenIn, amountIn); err != nil {
		return nil, err
	}
	if err := r.book.Credit(owner, tokenOut, amountOut); err != nil {
		return nil, err
	}
	return amountOut, nil
}
