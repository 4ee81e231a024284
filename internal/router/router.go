// Package router settles buys and sells of tokens against an exchange,
// keeps each account's cost basis and holding time, and mints a loyalty
// reward on profitable sales of safelisted tokens.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/internal/events"
	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/metrics"
	"github.com/nulln0ne/vanilla-router/internal/token"
	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Exchange quotes and executes single-hop swaps between WETH and a token.
type Exchange interface {
	WETH() common.Address
	HasPair(ctx context.Context, token common.Address) (bool, error)
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	SwapExactInput(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut *uint256.Int, deadline time.Time) (*uint256.Int, error)
}

// Minter issues reward tokens.
type Minter interface {
	Mint(ctx context.Context, account common.Address, amount *uint256.Int) error
}

// Treasury collects buy payments and pays out sale proceeds.
type Treasury interface {
	Collect(ctx context.Context, account common.Address, amount *uint256.Int, kind token.PaymentKind) error
	Pay(ctx context.Context, account common.Address, amount *uint256.Int, kind token.PaymentKind) error
}

// BlockSource reports the current block height.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	// ReserveLimit is subtracted from a token's reserve before any reward is
	// paid against it.
	ReserveLimit *uint256.Int
	Safelist     []common.Address
}

// Deps are the collaborators of a Router. Publisher and Metrics are optional.
type Deps struct {
	Exchange  Exchange
	Store     ledger.Store
	Minter    Minter
	Treasury  Treasury
	Blocks    BlockSource
	Publisher events.Publisher
	Metrics   *metrics.Collector
}

// Router is safe for concurrent use; operations run one at a time.
type Router struct {
	logger *slog.Logger

	mu        sync.Mutex
	exchange  Exchange
	ledger    *ledger.Ledger
	minter    Minter
	treasury  Treasury
	blocks    BlockSource
	publisher events.Publisher
	metrics   *metrics.Collector

	weth         common.Address
	epoch        uint64
	reserveLimit *uint256.Int
}

// New validates the safelist against the exchange and fixes the epoch at
// the current block. A store that already holds an epoch keeps it.
func New(ctx context.Context, logger *slog.Logger, cfg Config, deps Deps) (*Router, error) {
	if len(cfg.Safelist) == 0 {
		return nil, ErrEmptySafelist
	}
	for _, t := range cfg.Safelist {
		ok, err := deps.Exchange.HasPair(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("check pair for %s: %w", t.Hex(), err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", t.Hex(), ErrTokenNotTradable)
		}
	}

	current, err := deps.Blocks.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current block: %w", err)
	}
	book := ledger.New(deps.Store, ledger.NewSafelist(cfg.Safelist))
	epoch, err := book.InitEpoch(ctx, current)
	if err != nil {
		return nil, err
	}
	if current < epoch {
		return nil, fmt.Errorf("block %d, epoch %d: %w", current, epoch, ErrBlockBeforeEpoch)
	}

	limit := u256.Zero()
	if cfg.ReserveLimit != nil {
		limit = cfg.ReserveLimit.Clone()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Multi{}
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector("")
	}

	logger.Info("router ready", "epoch", epoch, "reserveLimit", limit.Dec(), "safelist", len(cfg.Safelist))
	return &Router{
		logger:       logger,
		exchange:     deps.Exchange,
		ledger:       book,
		minter:       deps.Minter,
		treasury:     deps.Treasury,
		blocks:       deps.Blocks,
		publisher:    publisher,
		metrics:      collector,
		weth:         deps.Exchange.WETH(),
		epoch:        epoch,
		reserveLimit: limit,
	}, nil
}

func (r *Router) Epoch() uint64 { return r.epoch }

func (r *Router) ReserveLimit() *uint256.Int { return r.reserveLimit.Clone() }

func (r *Router) IsTokenRewarded(token common.Address) bool {
	return r.ledger.Safelist().Contains(token)
}

func (r *Router) Safelist() []common.Address {
	return r.ledger.Safelist().Tokens()
}

// TokenPriceData returns the tracked position of account in token.
func (r *Router) TokenPriceData(ctx context.Context, account, token common.Address) (ledger.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Position(ctx, ledger.Key{Account: account, Token: token})
}

// WethReserve returns the tracked reserve of token, zero when not safelisted.
func (r *Router) WethReserve(ctx context.Context, token common.Address) (*uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Reserve(ctx, token)
}

// publish must be called without r.mu held.
func (r *Router) publish(ctx context.Context, e events.Event) {
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Error("publish event failed", "kind", e.Kind(), "token", e.Subject().Hex(), "err", err)
	}
}

func validAmount(v *uint256.Int) error {
	if v == nil || v.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// floor returns the caller's minimum output, zero when unset.
func floor(v *uint256.Int) *uint256.Int {
	if v == nil {
		return u256.Zero()
	}
	return v.Clone()
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
