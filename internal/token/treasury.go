package token

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PaymentKind selects the currency a trade settles in.
type PaymentKind int

const (
	// Wrapped settles in the wrapped-native token.
	Wrapped PaymentKind = iota
	// Native settles in the native currency, wrapped and unwrapped by the router.
	Native
)

func (k PaymentKind) String() string {
	switch k {
	case Wrapped:
		return "wrapped"
	case Native:
		return "native"
	default:
		return fmt.Sprintf("PaymentKind(%d)", int(k))
	}
}

// Treasury moves trade payments between accounts and the router.
type Treasury struct {
	native  *Ledger
	wrapped *Ledger
}

func NewTreasury(native, wrapped *Ledger) *Treasury {
	return &Treasury{native: native, wrapped: wrapped}
}

func (t *Treasury) Native() *Ledger  { return t.native }
func (t *Treasury) Wrapped() *Ledger { return t.wrapped }

// Collect takes amount from account before a buy.
func (t *Treasury) Collect(ctx context.Context, account common.Address, amount *uint256.Int, kind PaymentKind) error {
	l, err := t.ledger(kind)
	if err != nil {
		return err
	}
	return l.Burn(ctx, account, amount)
}

// Pay credits account with the proceeds of a sell, or refunds a collected
// payment.
func (t *Treasury) Pay(ctx context.Context, account common.Address, amount *uint256.Int, kind PaymentKind) error {
	l, err := t.ledger(kind)
	if err != nil {
		return err
	}
	return l.Mint(ctx, account, amount)
}

func (t *Treasury) ledger(kind PaymentKind) (*Ledger, error) {
	switch kind {
	case Wrapped:
		return t.wrapped, nil
	case Native:
		return t.native, nil
	default:
		return nil, fmt.Errorf("%s: %w", kind, ErrUnknownPayment)
	}
}
