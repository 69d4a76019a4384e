package swap

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"stablecore/crypto"
)

var (
	// ErrJobUnknown rejects deposits for an empty job identifier.
	ErrJobUnknown = errors.New("funding: job id required")
	// ErrNilVaultBook indicates the vault has no balance book wired.
	ErrNilVaultBook = errors.New("funding: balance book not configured")
)

// FundingVault is the reference automation funding registry. Deposits move the
// funding token from the configured funder to the vault address and accrue
// against the job's balance so the scheduler stays paid.
type FundingVault struct {
	mu       sync.Mutex
	book     Book
	vault    crypto.Address
	funder   crypto.Address
	token    string
	balances map[string]*big.Int
}

// NewFundingVault constructs a vault that pulls deposits from funder.
func NewFundingVault(book Book, vault, funder crypto.Address, token string) *FundingVault {
	return &FundingVault{
		book:     book,
		vault:    vault,
		funder:   funder,
		token:    strings.TrimSpace(token),
		balances: make(map[string]*big.Int),
	}
}

// FundingToken returns the asset the vault accepts.
func (v *FundingVault) FundingToken() string {
	if v == nil {
		return ""
	}
	return v.token
}

// AddFunds transfers amount of the funding token from the funder to the vault
// and credits the job's balance.
func (v *FundingVault) AddFunds(jobID string, amount *big.Int) error {
	if v == nil || v.book == nil {
		return ErrNilVaultBook
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ErrJobUnknown
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.book.Debit(v.funder, v.token, amount); err != nil {
		return err
	}
	if err := v.book.Credit(v.vault, v.token, amount); err != nil {
		return err
	}
	current := v.balances[jobID]
	if current == nil {
		current = big.NewInt(0)
	}
	v.balances[jobID] = new(big.Int).Add(current, amount)
	return nil
}

// JobBalance returns the accrued deposits for a job.
func (v *FundingVault) JobBalance(jobID string) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if balance, ok := v.balances[jobID]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}
