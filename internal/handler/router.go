package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/router"
	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// DefaultDeadline bounds trades submitted without a deadline.
const DefaultDeadline = 20 * time.Minute

// Router is the trading surface served over HTTP.
type Router interface {
	Buy(ctx context.Context, req router.BuyRequest) (router.BuyResult, error)
	DepositAndBuy(ctx context.Context, req router.BuyRequest) (router.BuyResult, error)
	Sell(ctx context.Context, req router.SellRequest) (router.SellResult, error)
	SellAndWithdraw(ctx context.Context, req router.SellRequest) (router.SellResult, error)
	EstimateReward(ctx context.Context, account, token common.Address, ethOut, tokensSold *uint256.Int) (router.Estimate, error)
	TokenPriceData(ctx context.Context, account, token common.Address) (ledger.Position, error)
	WethReserve(ctx context.Context, token common.Address) (*uint256.Int, error)
	Epoch() uint64
	ReserveLimit() *uint256.Int
	IsTokenRewarded(token common.Address) bool
	Safelist() []common.Address
}

type RouterHandler struct {
	BaseHandler
	router Router
	now    func() time.Time
}

func NewRouterHandler(logger *slog.Logger, r Router) *RouterHandler {
	return &RouterHandler{
		BaseHandler: BaseHandler{
			logger: logger,
		},
		router: r,
		now:    time.Now,
	}
}

// Routes mounts every endpoint on app.
func (h *RouterHandler) Routes(app *fiber.App) {
	app.Post("/buy", h.HandleBuy())
	app.Post("/sell", h.HandleSell())
	app.Get("/estimate", h.HandleEstimate())
	app.Get("/positions/:account/:token", h.HandlePosition())
	app.Get("/reserves/:token", h.HandleReserve())
	app.Get("/rewarded/:token", h.HandleRewarded())
	app.Get("/params", h.HandleParams())
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(amountStr string) (*uint256.Int, error) {
	if amountStr == "" {
		return nil, ErrAmountRequired
	}
	amount, err := u256.Parse(amountStr)
	if err != nil {
		return nil, ErrInvalidAmountFormat
	}
	if amount.IsZero() {
		return nil, ErrAmountNonPositive
	}
	return amount, nil
}

// parseOptionalAmount returns nil for an empty string; zero is allowed.
func parseOptionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := u256.Parse(s)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	return v, nil
}

func (h *RouterHandler) deadline(unix int64) time.Time {
	if unix == 0 {
		return h.now().Add(DefaultDeadline)
	}
	return time.Unix(unix, 0)
}
