package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/vanilla-router/internal/amm"
	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/router"
	"github.com/nulln0ne/vanilla-router/internal/token"
	"github.com/nulln0ne/vanilla-router/pkg/u256"
	"github.com/nulln0ne/vanilla-router/pkg/uniswapv2"
)

// ErrInvalidQueryParameters indicates that the request query string could not
// be parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrInvalidBody indicates that the request body is not the expected JSON.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrAmountRequired is returned when the amount parameter is missing.
var ErrAmountRequired = fiber.NewError(fiber.StatusBadRequest, "amount is required")

// ErrInvalidAmountFormat is returned when the amount cannot be parsed as a
// base-10 integer.
var ErrInvalidAmountFormat = fiber.NewError(fiber.StatusBadRequest, "invalid amount format")

// ErrAmountNonPositive is returned when the amount is zero.
var ErrAmountNonPositive = fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")

var (
	ErrSlippageBadRequest      = fiber.NewError(fiber.StatusBadRequest, "insufficient output amount")
	ErrDeadlineBadRequest      = fiber.NewError(fiber.StatusBadRequest, "deadline expired")
	ErrUntradableBadRequest    = fiber.NewError(fiber.StatusBadRequest, "token has no WETH pair")
	ErrBalanceBadRequest       = fiber.NewError(fiber.StatusBadRequest, "selling more than the tracked balance")
	ErrFundsBadRequest         = fiber.NewError(fiber.StatusBadRequest, "insufficient funds for payment")
	ErrNotEligibleBadRequest   = fiber.NewError(fiber.StatusBadRequest, "position is not eligible for a reward")
	ErrLiquidityBadRequest     = fiber.NewError(fiber.StatusBadRequest, "pool has insufficient reserves")
	ErrArithmeticUnprocessable = fiber.NewError(fiber.StatusUnprocessableEntity, "amount out of range")
)

// ErrTradeFailedInternal signals a generic server-side settlement error.
var ErrTradeFailedInternal = fiber.NewError(fiber.StatusInternalServerError, "trade failed")

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// NewInvalidAmount wraps an amount parsing error for field into a 400 Bad
// Request with a descriptive message.
func NewInvalidAmount(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
}

func (h *RouterHandler) handleRouterError(err error) error {
	switch {
	case errors.Is(err, amm.ErrSlippageExceeded):
		return ErrSlippageBadRequest
	case errors.Is(err, amm.ErrDeadlineExpired):
		return ErrDeadlineBadRequest
	case errors.Is(err, amm.ErrUnknownPair), errors.Is(err, amm.ErrSameToken), errors.Is(err, amm.ErrUnsupportedPath):
		return ErrUntradableBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return ErrBalanceBadRequest
	case errors.Is(err, token.ErrInsufficientFunds):
		return ErrFundsBadRequest
	case errors.Is(err, router.ErrNotEligible):
		return ErrNotEligibleBadRequest
	case errors.Is(err, router.ErrZeroAmount):
		return ErrAmountNonPositive
	case errors.Is(err, uniswapv2.ErrInsufficientLiquidity), errors.Is(err, uniswapv2.ErrInsufficientInputAmount):
		return ErrLiquidityBadRequest
	case errors.Is(err, u256.ErrOverflow):
		return ErrArithmeticUnprocessable
	default:
		h.logger.Error("router operation failed", "err", err)
		return ErrTradeFailedInternal
	}
}
