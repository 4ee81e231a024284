package handler

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/router"
)

// TradeRequest is the body of /buy and /sell. Amount is ether in for a buy
// and tokens in for a sell. Native settles in the native currency instead of
// WETH. Deadline is a unix timestamp.
type TradeRequest struct {
	Account  string `json:"account"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	MinOut   string `json:"min_out"`
	Deadline int64  `json:"deadline"`
	Native   bool   `json:"native"`
}

type BuyResponse struct {
	TokensOut *uint256.Int    `json:"tokens_out"`
	Reserve   *uint256.Int    `json:"reserve"`
	Block     uint64          `json:"block"`
	Position  ledger.Position `json:"position"`
}

type SellResponse struct {
	EthOut       *uint256.Int    `json:"eth_out"`
	Profit       *uint256.Int    `json:"profit"`
	Reward       *uint256.Int    `json:"reward"`
	Reserve      *uint256.Int    `json:"reserve"`
	AverageBlock uint64          `json:"average_block"`
	Block        uint64          `json:"block"`
	Position     ledger.Position `json:"position"`
}

type trade struct {
	account common.Address
	token   common.Address
	amount  *uint256.Int
	minOut  *uint256.Int
	req     *TradeRequest
}

func (h *RouterHandler) HandleBuy() fiber.Handler {
	return func(c fiber.Ctx) error {
		tr, err := h.parseTrade(c)
		if err != nil {
			return err
		}

		req := router.BuyRequest{
			Account:      tr.account,
			Token:        tr.token,
			EthIn:        tr.amount,
			MinTokensOut: tr.minOut,
			Deadline:     h.deadline(tr.req.Deadline),
		}
		buy := h.router.Buy
		if tr.req.Native {
			buy = h.router.DepositAndBuy
		}
		res, err := buy(context.Background(), req)
		if err != nil {
			return h.handleRouterError(err)
		}

		h.requestLogger(c).Debug("buy served", "account", tr.req.Account, "token", tr.req.Token, "in", tr.amount.Dec(), "out", res.TokensOut.Dec())
		return c.JSON(BuyResponse{
			TokensOut: res.TokensOut,
			Reserve:   res.Reserve,
			Block:     res.Block,
			Position:  res.Position,
		})
	}
}

func (h *RouterHandler) HandleSell() fiber.Handler {
	return func(c fiber.Ctx) error {
		tr, err := h.parseTrade(c)
		if err != nil {
			return err
		}

		req := router.SellRequest{
			Account:   tr.account,
			Token:     tr.token,
			TokensIn:  tr.amount,
			MinEthOut: tr.minOut,
			Deadline:  h.deadline(tr.req.Deadline),
		}
		sell := h.router.Sell
		if tr.req.Native {
			sell = h.router.SellAndWithdraw
		}
		res, err := sell(context.Background(), req)
		if err != nil {
			return h.handleRouterError(err)
		}

		h.requestLogger(c).Debug("sell served", "account", tr.req.Account, "token", tr.req.Token, "in", tr.amount.Dec(), "out", res.EthOut.Dec(), "reward", res.Reward.Dec())
		return c.JSON(SellResponse{
			EthOut:       res.EthOut,
			Profit:       res.Profit,
			Reward:       res.Reward,
			Reserve:      res.Reserve,
			AverageBlock: res.AverageBlock,
			Block:        res.Block,
			Position:     res.Remaining,
		})
	}
}

func (h *RouterHandler) parseTrade(c fiber.Ctx) (*trade, error) {
	var req TradeRequest
	if err := c.Bind().Body(&req); err != nil {
		h.logger.Debug("failed to bind trade body", "err", err)
		return nil, ErrInvalidBody
	}

	account, err := parseAddress("account", req.Account)
	if err != nil {
		return nil, err
	}
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalAmount("min_out", req.MinOut)
	if err != nil {
		return nil, err
	}
	return &trade{account: account, token: tok, amount: amount, minOut: minOut, req: &req}, nil
}
