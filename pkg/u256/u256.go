// Package u256 provides overflow-checked arithmetic over 256-bit unsigned
// integers. Every operation allocates its result and never mutates operands.
package u256

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Zero returns a new zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%s + %s: %w", x.Dec(), y.Dec(), ErrOverflow)
	}
	return z, nil
}

// Sub returns x - y.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, fmt.Errorf("%s - %s: %w", x.Dec(), y.Dec(), ErrUnderflow)
	}
	return z, nil
}

// Mul returns x * y.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%s * %s: %w", x.Dec(), y.Dec(), ErrOverflow)
	}
	return z, nil
}

// Div returns x / y truncated toward zero.
func Div(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, fmt.Errorf("%s / 0: %w", x.Dec(), ErrDivisionByZero)
	}
	return new(uint256.Int).Div(x, y), nil
}

// MulDiv returns x * y / d, checking the intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return Div(p, d)
}

// Square returns x * x.
func Square(x *uint256.Int) (*uint256.Int, error) {
	return Mul(x, x)
}

// Parse reads a base-10 string. Empty input is rejected.
func Parse(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("empty number")
	}
	return uint256.FromDecimal(s)
}

// Ether returns n * 10^18.
func Ether(n uint64) *uint256.Int {
	z := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	return z.Mul(z, uint256.NewInt(n))
}
