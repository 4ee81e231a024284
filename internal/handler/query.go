package handler

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"
)

type ReserveResponse struct {
	Token   common.Address `json:"token"`
	Reserve *uint256.Int   `json:"reserve"`
}

type RewardedResponse struct {
	Token    common.Address `json:"token"`
	Rewarded bool           `json:"rewarded"`
}

type ParamsResponse struct {
	Epoch        uint64           `json:"epoch"`
	ReserveLimit *uint256.Int     `json:"reserve_limit"`
	Safelist     []common.Address `json:"safelist"`
}

func (h *RouterHandler) HandlePosition() fiber.Handler {
	return func(c fiber.Ctx) error {
		account, err := parseAddress("account", c.Params("account"))
		if err != nil {
			return err
		}
		tok, err := parseAddress("token", c.Params("token"))
		if err != nil {
			return err
		}
		pos, err := h.router.TokenPriceData(context.Background(), account, tok)
		if err != nil {
			return h.handleRouterError(err)
		}
		return c.JSON(pos)
	}
}

func (h *RouterHandler) HandleReserve() fiber.Handler {
	return func(c fiber.Ctx) error {
		tok, err := parseAddress("token", c.Params("token"))
		if err != nil {
			return err
		}
		reserve, err := h.router.WethReserve(context.Background(), tok)
		if err != nil {
			return h.handleRouterError(err)
		}
		return c.JSON(ReserveResponse{Token: tok, Reserve: reserve})
	}
}

func (h *RouterHandler) HandleRewarded() fiber.Handler {
	return func(c fiber.Ctx) error {
		tok, err := parseAddress("token", c.Params("token"))
		if err != nil {
			return err
		}
		return c.JSON(RewardedResponse{Token: tok, Rewarded: h.router.IsTokenRewarded(tok)})
	}
}

func (h *RouterHandler) HandleParams() fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(ParamsResponse{
			Epoch:        h.router.Epoch(),
			ReserveLimit: h.router.ReserveLimit(),
			Safelist:     h.router.Safelist(),
		})
	}
}
