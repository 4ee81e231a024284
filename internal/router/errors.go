package router

import "errors"

var (
	// ErrEmptySafelist rejects construction without any rewarded token.
	ErrEmptySafelist = errors.New("safelist is empty")
	// ErrTokenNotTradable rejects a safelist entry the exchange has no pair for.
	ErrTokenNotTradable = errors.New("token is not tradable on the exchange")
	// ErrNotEligible is returned by EstimateReward for positions that cannot earn a reward.
	ErrNotEligible = errors.New("position is not eligible for a reward")
	ErrZeroAmount  = errors.New("amount must be greater than zero")
	// ErrBlockBeforeEpoch rejects a block source behind the stored epoch.
	ErrBlockBeforeEpoch = errors.New("block source is behind the epoch")
)
