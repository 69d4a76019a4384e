package types

import "math/big"

// Account tracks the freely transferable token balances held by an address.
// Collateral and debt bookkeeping live in the position ledger, not here.
type Account struct {
	Balances map[string]*big.Int
}

// NewAccount returns an account with an initialised balance table.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the held amount of the given asset, never nil.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if amount, ok := a.Balances[asset]; ok && amount != nil {
		return amount
	}
	return big.NewInt(0)
}

// SetBalance records the held amount of the given asset.
func (a *Account) SetBalance(asset string, amount *big.Int) {
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	a.Balances[asset] = amount
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := NewAccount()
	for asset, amount := range a.Balances {
		if amount != nil {
			clone.Balances[asset] = new(big.Int).Set(amount)
		}
	}
	return clone
}
