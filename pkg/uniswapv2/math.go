// Package uniswapv2 implements the Uniswap V2 constant-product quote with
// the 0.3% pool fee, over checked 256-bit integers.
package uniswapv2

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// fee: 0.3% => multiplier 997/1000
var (
	feeMul = uint256.NewInt(997)
	feeDen = uint256.NewInt(1000)
)

var (
	ErrInsufficientInputAmount = errors.New("uniswapv2: insufficient input amount")
	ErrInsufficientLiquidity   = errors.New("uniswapv2: insufficient liquidity")
)

// GetAmountOut returns the maximum output for amountIn against the given
// reserves:
//
//	amountOut = amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997)
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	withFee, err := u256.Mul(amountIn, feeMul)
	if err != nil {
		return nil, err
	}
	numerator, err := u256.Mul(withFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := u256.Mul(reserveIn, feeDen)
	if err != nil {
		return nil, err
	}
	if denominator, err = u256.Add(denominator, withFee); err != nil {
		return nil, err
	}
	return u256.Div(numerator, denominator)
}
