// Package events defines the trade notifications the router emits and the
// sinks that deliver them.
package events

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	KindPurchased = "TokensPurchased"
	KindSold      = "TokensSold"
)

// Event is a settled trade.
type Event interface {
	Kind() string
	Subject() common.Address
}

// TokensPurchased is emitted after a committed buy. Reserve is the token's
// reserve after the purchase was added.
type TokensPurchased struct {
	Account   common.Address `json:"account"`
	Token     common.Address `json:"token"`
	EthIn     *uint256.Int   `json:"ethIn"`
	TokensOut *uint256.Int   `json:"tokensOut"`
	Reserve   *uint256.Int   `json:"reserve"`
	Block     uint64         `json:"block"`
}

func (TokensPurchased) Kind() string              { return KindPurchased }
func (e TokensPurchased) Subject() common.Address { return e.Token }

// TokensSold is emitted after a committed sell. Reserve is the value the
// reward was computed against, before the sale's cost basis left it.
type TokensSold struct {
	Account  common.Address `json:"account"`
	Token    common.Address `json:"token"`
	TokensIn *uint256.Int   `json:"tokensIn"`
	EthOut   *uint256.Int   `json:"ethOut"`
	Profit   *uint256.Int   `json:"profit"`
	Reward   *uint256.Int   `json:"reward"`
	Reserve  *uint256.Int   `json:"reserve"`
	Block    uint64         `json:"block"`
}

func (TokensSold) Kind() string              { return KindSold }
func (e TokensSold) Subject() common.Address { return e.Token }

// Publisher delivers events to observers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
