// Package reward evaluates the loyalty reward for a realized trade.
//
//	Bhold  = currentBlock - avgBlock
//	Btrade = currentBlock - epoch
//	HTRS   = (Bhold / Btrade)²                        holding/trading ratio, squared
//	VPC    = 1 - min((profit + reserveLimit) / reserve, 1)  value-protection coefficient
//	reward = profit * VPC * HTRS
//
// The integer evaluation is
//
//	profit * (reserve - profit - reserveLimit) * Bhold² / reserve / Btrade²
//
// in exactly this order; truncation depends on it.
package reward

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Scale is the fixed-point unit of the ratios in a Breakdown.
var Scale = u256.Ether(1)

// Breakdown carries the reward together with its two coefficients, both
// expressed as fractions of Scale.
type Breakdown struct {
	HTRS   *uint256.Int
	VPC    *uint256.Int
	Reward *uint256.Int
}

// Calculate returns the reward for selling at currentBlock a position whose
// weighted-average acquisition block is avgBlock. A zero reserve, an empty
// trading window, or no profit yield zero. Blocks out of order, including an
// average block before the epoch, are an underflow.
func Calculate(epoch, avgBlock, currentBlock uint64, profit, reserve, reserveLimit *uint256.Int) (*uint256.Int, error) {
	b, err := Explain(epoch, avgBlock, currentBlock, profit, reserve, reserveLimit)
	if err != nil {
		return nil, err
	}
	return b.Reward, nil
}

// Explain is Calculate with the intermediate coefficients.
func Explain(epoch, avgBlock, currentBlock uint64, profit, reserve, reserveLimit *uint256.Int) (Breakdown, error) {
	zero := Breakdown{HTRS: u256.Zero(), VPC: u256.Zero(), Reward: u256.Zero()}

	if currentBlock < avgBlock {
		return Breakdown{}, fmt.Errorf("current block %d before average block %d: %w", currentBlock, avgBlock, u256.ErrUnderflow)
	}
	if currentBlock < epoch {
		return Breakdown{}, fmt.Errorf("current block %d before epoch %d: %w", currentBlock, epoch, u256.ErrUnderflow)
	}
	if avgBlock < epoch {
		return Breakdown{}, fmt.Errorf("average block %d before epoch %d: %w", avgBlock, epoch, u256.ErrUnderflow)
	}
	if currentBlock == epoch {
		return zero, nil
	}

	bhold := uint256.NewInt(currentBlock - avgBlock)
	btrade := uint256.NewInt(currentBlock - epoch)
	bhold2, err := u256.Square(bhold)
	if err != nil {
		return Breakdown{}, err
	}
	btrade2, err := u256.Square(btrade)
	if err != nil {
		return Breakdown{}, err
	}
	htrs, err := u256.MulDiv(bhold2, Scale, btrade2)
	if err != nil {
		return Breakdown{}, err
	}
	zero.HTRS = htrs
	if reserve.IsZero() {
		return zero, nil
	}

	// An overflowing sum is necessarily above any reserve.
	exposure, overflow := new(uint256.Int).AddOverflow(profit, reserveLimit)
	if overflow || exposure.Gt(reserve) {
		return zero, nil
	}
	headroom := new(uint256.Int).Sub(reserve, exposure)
	vpc, err := u256.MulDiv(headroom, Scale, reserve)
	if err != nil {
		return Breakdown{}, err
	}

	r, err := u256.Mul(profit, headroom)
	if err != nil {
		return Breakdown{}, err
	}
	if r, err = u256.Mul(r, bhold2); err != nil {
		return Breakdown{}, err
	}
	if r, err = u256.Div(r, reserve); err != nil {
		return Breakdown{}, err
	}
	if r, err = u256.Div(r, btrade2); err != nil {
		return Breakdown{}, err
	}
	return Breakdown{HTRS: htrs, VPC: vpc, Reward: r}, nil
}
