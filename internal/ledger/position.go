// Package ledger keeps the per-account cost basis of every token bought
// through the router and the per-token WETH reserve of safelisted tokens.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Key identifies a position.
type Key struct {
	Account common.Address
	Token   common.Address
}

func (k Key) String() string {
	return k.Account.Hex() + ":" + k.Token.Hex()
}

// Position is the running aggregate of the buys still held by an account.
// WeightedBlockSum / TokenSum is the token-weighted average acquisition block.
type Position struct {
	EtherSum         *uint256.Int `json:"ethSum"`
	TokenSum         *uint256.Int `json:"tokenSum"`
	WeightedBlockSum *uint256.Int `json:"weightedBlockSum"`
	LatestBlock      uint64       `json:"latestBlock"`
}

func EmptyPosition() Position {
	return Position{
		EtherSum:         u256.Zero(),
		TokenSum:         u256.Zero(),
		WeightedBlockSum: u256.Zero(),
	}
}

func (p Position) Clone() Position {
	return Position{
		EtherSum:         p.EtherSum.Clone(),
		TokenSum:         p.TokenSum.Clone(),
		WeightedBlockSum: p.WeightedBlockSum.Clone(),
		LatestBlock:      p.LatestBlock,
	}
}

func (p Position) IsEmpty() bool {
	return p.TokenSum.IsZero()
}

// AverageBlock returns WeightedBlockSum / TokenSum.
func (p Position) AverageBlock() (uint64, error) {
	if p.IsEmpty() {
		return 0, ErrEmptyPosition
	}
	avg, err := u256.Div(p.WeightedBlockSum, p.TokenSum)
	if err != nil {
		return 0, err
	}
	if !avg.IsUint64() {
		return 0, fmt.Errorf("average block %s: %w", avg.Dec(), u256.ErrOverflow)
	}
	return avg.Uint64(), nil
}

// WithBuy returns the position after buying tokensOut for ethIn at block.
func (p Position) WithBuy(ethIn, tokensOut *uint256.Int, block uint64) (Position, error) {
	etherSum, err := u256.Add(p.EtherSum, ethIn)
	if err != nil {
		return Position{}, err
	}
	tokenSum, err := u256.Add(p.TokenSum, tokensOut)
	if err != nil {
		return Position{}, err
	}
	weight, err := u256.Mul(tokensOut, uint256.NewInt(block))
	if err != nil {
		return Position{}, err
	}
	weighted, err := u256.Add(p.WeightedBlockSum, weight)
	if err != nil {
		return Position{}, err
	}
	return Position{
		EtherSum:         etherSum,
		TokenSum:         tokenSum,
		WeightedBlockSum: weighted,
		LatestBlock:      block,
	}, nil
}

// Sale describes what a sell removed from a position.
type Sale struct {
	// AverageBlock of the position before the sale.
	AverageBlock uint64
	// CostBasis is the share of EtherSum attributed to the sold tokens.
	CostBasis *uint256.Int
	Remaining Position
}

// WithSell removes tokensSold from the position. Every accumulator shrinks by
// the fraction tokensSold/TokenSum and the remainder keeps the same average
// acquisition block. Selling everything resets the position to zero.
func (p Position) WithSell(tokensSold *uint256.Int) (Sale, error) {
	if tokensSold.Gt(p.TokenSum) {
		return Sale{}, fmt.Errorf("selling %s of %s: %w", tokensSold.Dec(), p.TokenSum.Dec(), ErrInsufficientBalance)
	}
	avg, err := p.AverageBlock()
	if err != nil {
		return Sale{}, err
	}
	if tokensSold.Eq(p.TokenSum) {
		return Sale{AverageBlock: avg, CostBasis: p.EtherSum.Clone(), Remaining: EmptyPosition()}, nil
	}

	basis, err := u256.MulDiv(p.EtherSum, tokensSold, p.TokenSum)
	if err != nil {
		return Sale{}, err
	}
	tokenSum, err := u256.Sub(p.TokenSum, tokensSold)
	if err != nil {
		return Sale{}, err
	}
	etherSum, err := u256.Sub(p.EtherSum, basis)
	if err != nil {
		return Sale{}, err
	}
	weighted, err := u256.Mul(uint256.NewInt(avg), tokenSum)
	if err != nil {
		return Sale{}, err
	}
	return Sale{
		AverageBlock: avg,
		CostBasis:    basis,
		Remaining: Position{
			EtherSum:         etherSum,
			TokenSum:         tokenSum,
			WeightedBlockSum: weighted,
			LatestBlock:      p.LatestBlock,
		},
	}, nil
}
