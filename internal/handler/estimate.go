package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"
)

type EstimateRequest struct {
	Account    string `query:"account" json:"account"`
	Token      string `query:"token" json:"token"`
	TokensSold string `query:"tokens_sold" json:"tokens_sold"`
	EthOut     string `query:"eth_out" json:"eth_out"`
}

// EstimateResponse carries HTRS and VPC as fractions of 1e18.
type EstimateResponse struct {
	EthOut       *uint256.Int `json:"eth_out"`
	Profit       *uint256.Int `json:"profit"`
	HTRS         *uint256.Int `json:"htrs"`
	VPC          *uint256.Int `json:"vpc"`
	Reserve      *uint256.Int `json:"reserve"`
	Reward       *uint256.Int `json:"reward"`
	AverageBlock uint64       `json:"average_block"`
	Block        uint64       `json:"block"`
}

// HandleEstimate projects the reward of selling tokens_sold at the current
// block. Without eth_out the exchange quote is used.
func (h *RouterHandler) HandleEstimate() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req EstimateRequest
		if err := c.Bind().Query(&req); err != nil {
			h.logger.Debug("failed to bind query parameters", "err", err)
			return ErrInvalidQueryParameters
		}

		account, err := parseAddress("account", req.Account)
		if err != nil {
			return err
		}
		tok, err := parseAddress("token", req.Token)
		if err != nil {
			return err
		}
		sold, err := parseAmount(req.TokensSold)
		if err != nil {
			return err
		}
		ethOut, err := parseOptionalAmount("eth_out", req.EthOut)
		if err != nil {
			return err
		}

		est, err := h.router.EstimateReward(context.Background(), account, tok, ethOut, sold)
		if err != nil {
			return h.handleRouterError(err)
		}

		h.requestLogger(c).Debug("estimate computed", "account", req.Account, "token", req.Token, "sold", sold.Dec(), "reward", est.Reward.Dec())
		return c.JSON(EstimateResponse{
			EthOut:       est.EthOut,
			Profit:       est.Profit,
			HTRS:         est.HTRS,
			VPC:          est.VPC,
			Reserve:      est.Reserve,
			Reward:       est.Reward,
			AverageBlock: est.AverageBlock,
			Block:        est.Block,
		})
	}
}
