package ledger

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient tracked balance")
	ErrEmptyPosition       = errors.New("position is empty")
	ErrBatchClosed         = errors.New("batch already committed")
)
