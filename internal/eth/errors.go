package eth

import "errors"

var (
	ErrEmptyReserves = errors.New("empty reserves")
	ErrNotWETHPair   = errors.New("pair does not contain WETH")
)
