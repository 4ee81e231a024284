package amm

import "errors"

var (
	ErrSameToken        = errors.New("src and dst are equal")
	ErrUnknownPair      = errors.New("no WETH pair for token")
	ErrUnsupportedPath  = errors.New("swap path must have WETH on one side")
	ErrSlippageExceeded = errors.New("insufficient output amount")
	ErrDeadlineExpired  = errors.New("deadline expired")
	ErrZeroLiquidity    = errors.New("liquidity amounts must be positive")
)
