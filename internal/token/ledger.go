// Package token holds in-process ERC20-style balance ledgers: the reward
// token the router mints into and the native/wrapped currency the router
// collects payments in.
package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Ledger is a fungible balance sheet. It is safe for concurrent use.
type Ledger struct {
	symbol string

	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[common.Address]*uint256.Int),
		supply:   u256.Zero(),
	}
}

func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[account]; ok {
		return b.Clone()
	}
	return u256.Zero()
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.Clone()
}

// Mint credits amount to account and grows the supply.
func (l *Ledger) Mint(_ context.Context, account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := u256.Add(l.supply, amount)
	if err != nil {
		return fmt.Errorf("mint %s %s: %w", amount.Dec(), l.symbol, err)
	}
	balance, err := u256.Add(l.balance(account), amount)
	if err != nil {
		return fmt.Errorf("mint %s %s: %w", amount.Dec(), l.symbol, err)
	}
	l.supply = supply
	l.set(account, balance)
	return nil
}

// Burn debits amount from account and shrinks the supply.
func (l *Ledger) Burn(_ context.Context, account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.debit(account, amount)
	if err != nil {
		return err
	}
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	l.set(account, balance)
	return nil
}

func (l *Ledger) debit(account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	have := l.balance(account)
	if have.Lt(amount) {
		return nil, fmt.Errorf("%s has %s %s, needs %s: %w", account.Hex(), have.Dec(), l.symbol, amount.Dec(), ErrInsufficientFunds)
	}
	return new(uint256.Int).Sub(have, amount), nil
}

func (l *Ledger) balance(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return u256.Zero()
}

func (l *Ledger) set(account common.Address, v *uint256.Int) {
	if v.IsZero() {
		delete(l.balances, account)
		return
	}
	l.balances[account] = v
}
