package token

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownPayment    = errors.New("unknown payment kind")
)
