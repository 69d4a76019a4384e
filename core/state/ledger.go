package state

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"stablecore/core/types"
	"stablecore/crypto"
	"stablecore/native/oracle"
)

var (
	errNilOracle              = errors.New("ledger: price source not configured")
	errUnknownAsset           = errors.New("ledger: asset not registered")
	errInvalidAmount          = errors.New("ledger: amount must be positive")
	errInsufficientBalance    = errors.New("ledger: insufficient balance")
	errInsufficientCollateral = errors.New("ledger: insufficient collateral")
	errRepayExceedsDebt       = errors.New("ledger: repay exceeds outstanding debt")
	errInvalidSnapshot        = errors.New("ledger: unknown snapshot id")
)

// Ledger is the reference position ledger used by the liquidation engine, the
// automation scanner and the test suite. It tracks free balances, pledged
// collateral and outstanding debt per user and answers USD valuations through
// a pluggable price source.
//
// The ledger is deliberately minimal: interest accrual, supply shares and the
// rate model live outside the risk core and are not reproduced here.
type Ledger struct {
	mu     sync.RWMutex
	prices oracle.PriceSource

	assets []string

	accounts   map[string]*types.Account
	collateral map[string]map[string]*big.Int
	debts      map[string]map[string]*big.Int

	users     []crypto.Address
	userIndex map[string]int

	snapshots []*snapshot
	nextSnap  int
}

type snapshot struct {
	id         int
	accounts   map[string]*types.Account
	collateral map[string]map[string]*big.Int
	debts      map[string]map[string]*big.Int
}

// NewLedger constructs a ledger priced by the supplied source.
func NewLedger(prices oracle.PriceSource) *Ledger {
	return &Ledger{
		prices:     prices,
		accounts:   make(map[string]*types.Account),
		collateral: make(map[string]map[string]*big.Int),
		debts:      make(map[string]map[string]*big.Int),
		userIndex:  make(map[string]int),
	}
}

// RegisterAsset adds an asset to the ledger's bookkeeping tables. Registration
// order is preserved so batch reads stay deterministic.
func (l *Ledger) RegisterAsset(asset string) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.assets {
		if existing == asset {
			return
		}
	}
	l.assets = append(l.assets, asset)
}

// Assets returns the registered assets in registration order.
func (l *Ledger) Assets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.assets...)
}

func (l *Ledger) key(addr crypto.Address) string {
	return string(addr.Bytes())
}

func (l *Ledger) account(addr crypto.Address) *types.Account {
	key := l.key(addr)
	acc, ok := l.accounts[key]
	if !ok {
		acc = types.NewAccount()
		l.accounts[key] = acc
	}
	return acc
}

func (l *Ledger) trackUser(addr crypto.Address) {
	key := l.key(addr)
	if _, ok := l.userIndex[key]; ok {
		return
	}
	l.userIndex[key] = len(l.users)
	l.users = append(l.users, addr)
}

func (l *Ledger) hasAsset(asset string) bool {
	for _, existing := range l.assets {
		if existing == asset {
			return true
		}
	}
	return false
}

// Credit mints free balance for an address. Used by genesis fixtures and the
// settlement path.
func (l *Ledger) Credit(addr crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	acc := l.account(addr)
	acc.SetBalance(asset, new(big.Int).Add(acc.Balance(asset), amount))
	return nil
}

// Debit burns free balance from an address, failing when the balance cannot
// cover the amount.
func (l *Ledger) Debit(addr crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	acc := l.account(addr)
	if acc.Balance(asset).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	acc.SetBalance(asset, new(big.Int).Sub(acc.Balance(asset), amount))
	return nil
}

// DepositCollateral locks a user's free balance as collateral.
func (l *Ledger) DepositCollateral(user crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	acc := l.account(user)
	if acc.Balance(asset).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	acc.SetBalance(asset, new(big.Int).Sub(acc.Balance(asset), amount))

	bucket, ok := l.collateral[l.key(user)]
	if !ok {
		bucket = make(map[string]*big.Int)
		l.collateral[l.key(user)] = bucket
	}
	current := bucket[asset]
	if current == nil {
		current = big.NewInt(0)
	}
	bucket[asset] = new(big.Int).Add(current, amount)
	l.trackUser(user)
	return nil
}

// Borrow books new debt against a user and credits the borrowed tokens to
// their free balance. Rate-model and LTV admission checks are the borrowing
// module's responsibility, not the ledger's.
func (l *Ledger) Borrow(user crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	bucket, ok := l.debts[l.key(user)]
	if !ok {
		bucket = make(map[string]*big.Int)
		l.debts[l.key(user)] = bucket
	}
	current := bucket[asset]
	if current == nil {
		current = big.NewInt(0)
	}
	bucket[asset] = new(big.Int).Add(current, amount)

	acc := l.account(user)
	acc.SetBalance(asset, new(big.Int).Add(acc.Balance(asset), amount))
	l.trackUser(user)
	return nil
}

// CollateralBalance returns the pledged amount of an asset for a user.
func (l *Ledger) CollateralBalance(user crypto.Address, asset string) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasAsset(asset) {
		return nil, errUnknownAsset
	}
	if bucket, ok := l.collateral[l.key(user)]; ok {
		if amount := bucket[asset]; amount != nil {
			return new(big.Int).Set(amount), nil
		}
	}
	return big.NewInt(0), nil
}

// BorrowedAmount returns the outstanding debt of an asset for a user.
func (l *Ledger) BorrowedAmount(user crypto.Address, asset string) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasAsset(asset) {
		return nil, errUnknownAsset
	}
	if bucket, ok := l.debts[l.key(user)]; ok {
		if amount := bucket[asset]; amount != nil {
			return new(big.Int).Set(amount), nil
		}
	}
	return big.NewInt(0), nil
}

// TokenBalance returns the freely transferable balance of an asset.
func (l *Ledger) TokenBalance(addr crypto.Address, asset string) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasAsset(asset) {
		return nil, errUnknownAsset
	}
	if acc, ok := l.accounts[l.key(addr)]; ok {
		return new(big.Int).Set(acc.Balance(asset)), nil
	}
	return big.NewInt(0), nil
}

// UsdValue converts a token amount to USD through the price source.
func (l *Ledger) UsdValue(asset string, amount *big.Int) (*big.Int, error) {
	if l.prices == nil {
		return nil, errNilOracle
	}
	return l.prices.UsdValue(asset, amount)
}

// TokenAmountFromUsd converts a USD value to a token amount through the price
// source.
func (l *Ledger) TokenAmountFromUsd(asset string, usd *big.Int) (*big.Int, error) {
	if l.prices == nil {
		return nil, errNilOracle
	}
	return l.prices.TokenAmountFromUsd(asset, usd)
}

// AccountCollateralValueInUsd sums the USD value of every pledged asset.
func (l *Ledger) AccountCollateralValueInUsd(user crypto.Address) (*big.Int, error) {
	l.mu.RLock()
	assets := append([]string(nil), l.assets...)
	bucket := l.collateral[l.key(user)]
	amounts := make(map[string]*big.Int, len(bucket))
	for asset, amount := range bucket {
		if amount != nil {
			amounts[asset] = new(big.Int).Set(amount)
		}
	}
	l.mu.RUnlock()

	total := big.NewInt(0)
	for _, asset := range assets {
		amount := amounts[asset]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		value, err := l.UsdValue(asset, amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// UserBatch returns a window of users starting at offset, along with the total
// user count. Offsets at or past the end yield an empty window.
func (l *Ledger) UserBatch(window, offset uint64) ([]crypto.Address, uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := uint64(len(l.users))
	if total == 0 || offset >= total || window == 0 {
		return nil, total, nil
	}
	end := offset + window
	if end > total {
		end = total
	}
	batch := make([]crypto.Address, 0, end-offset)
	for _, user := range l.users[offset:end] {
		batch = append(batch, user)
	}
	return batch, total, nil
}

// WithdrawCollateral debits pledged collateral from a user and credits the
// recipient's free balance.
func (l *Ledger) WithdrawCollateral(user, recipient crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	bucket := l.collateral[l.key(user)]
	current := big.NewInt(0)
	if bucket != nil && bucket[asset] != nil {
		current = bucket[asset]
	}
	if current.Cmp(amount) < 0 {
		return errInsufficientCollateral
	}
	bucket[asset] = new(big.Int).Sub(current, amount)

	acc := l.account(recipient)
	acc.SetBalance(asset, new(big.Int).Add(acc.Balance(asset), amount))
	return nil
}

// PaybackBorrowed reduces a user's debt, funded from the payer's free balance.
func (l *Ledger) PaybackBorrowed(payer, user crypto.Address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasAsset(asset) {
		return errUnknownAsset
	}
	payerAcc := l.account(payer)
	if payerAcc.Balance(asset).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	bucket := l.debts[l.key(user)]
	current := big.NewInt(0)
	if bucket != nil && bucket[asset] != nil {
		current = bucket[asset]
	}
	if current.Cmp(amount) < 0 {
		return errRepayExceedsDebt
	}
	payerAcc.SetBalance(asset, new(big.Int).Sub(payerAcc.Balance(asset), amount))
	bucket[asset] = new(big.Int).Sub(current, amount)
	return nil
}

// Snapshot captures the current balances so a failed liquidation can roll
// back atomically. Snapshot identifiers are only valid until the matching
// revert or the next commit boundary.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := &snapshot{
		id:         l.nextSnap,
		accounts:   make(map[string]*types.Account, len(l.accounts)),
		collateral: cloneNested(l.collateral),
		debts:      cloneNested(l.debts),
	}
	for key, acc := range l.accounts {
		snap.accounts[key] = acc.Clone()
	}
	l.nextSnap++
	l.snapshots = append(l.snapshots, snap)
	return snap.id
}

// RevertToSnapshot restores the ledger to a previously captured snapshot and
// discards it together with any later snapshots.
func (l *Ledger) RevertToSnapshot(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.snapshots) - 1; i >= 0; i-- {
		if l.snapshots[i].id != id {
			continue
		}
		snap := l.snapshots[i]
		l.accounts = snap.accounts
		l.collateral = snap.collateral
		l.debts = snap.debts
		l.snapshots = l.snapshots[:i]
		return nil
	}
	return errInvalidSnapshot
}

// DiscardSnapshot drops a snapshot without restoring it, committing the
// mutations made since it was taken.
func (l *Ledger) DiscardSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.snapshots) - 1; i >= 0; i-- {
		if l.snapshots[i].id == id {
			l.snapshots = append(l.snapshots[:i], l.snapshots[i+1:]...)
			return
		}
	}
}

func cloneNested(src map[string]map[string]*big.Int) map[string]map[string]*big.Int {
	out := make(map[string]map[string]*big.Int, len(src))
	for key, bucket := range src {
		cloned := make(map[string]*big.Int, len(bucket))
		for asset, amount := range bucket {
			if amount != nil {
				cloned[asset] = new(big.Int).Set(amount)
			}
		}
		out[key] = cloned
	}
	return out
}
