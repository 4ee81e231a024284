package router

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/internal/events"
	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/metrics"
	"github.com/nulln0ne/vanilla-router/internal/reward"
	"github.com/nulln0ne/vanilla-router/internal/token"
	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

type SellRequest struct {
	Account   common.Address
	Token     common.Address
	TokensIn  *uint256.Int
	MinEthOut *uint256.Int
	Deadline  time.Time
}

type SellResult struct {
	EthOut *uint256.Int
	// Profit is EthOut less the cost basis of the tokens sold, floored at zero.
	Profit *uint256.Int
	Reward *uint256.Int
	// Reserve is the value the reward was computed against.
	Reserve      *uint256.Int
	ReserveAfter *uint256.Int
	AverageBlock uint64
	Block        uint64
	Remaining    ledger.Position
}

// Sell swaps tracked tokens for WETH credited to the account's wrapped balance.
func (r *Router) Sell(ctx context.Context, req SellRequest) (SellResult, error) {
	return r.sell(ctx, req, token.Wrapped)
}

// SellAndWithdraw swaps tracked tokens and pays the proceeds in native currency.
func (r *Router) SellAndWithdraw(ctx context.Context, req SellRequest) (SellResult, error) {
	return r.sell(ctx, req, token.Native)
}

func (r *Router) sell(ctx context.Context, req SellRequest, kind token.PaymentKind) (SellResult, error) {
	start := time.Now()

	r.mu.Lock()
	res, err := r.settleSell(ctx, req, kind)
	r.mu.Unlock()
	if err != nil {
		r.metrics.TradeFailed(metrics.SideSell, req.Token)
		r.logger.Warn("sell rejected",
			"account", req.Account.Hex(), "token", req.Token.Hex(),
			"tokensIn", dec(req.TokensIn), "payment", kind.String(), "err", err)
		return SellResult{}, err
	}

	r.metrics.TradeCommitted(metrics.SideSell, req.Token, res.EthOut, time.Since(start).Seconds())
	if r.IsTokenRewarded(req.Token) {
		r.metrics.SetReserve(req.Token, res.ReserveAfter)
	}
	if !res.Reward.IsZero() {
		r.metrics.RewardMinted(req.Token, res.Reward)
	}
	r.logger.Debug("sell committed",
		"account", req.Account.Hex(), "token", req.Token.Hex(),
		"tokensIn", req.TokensIn.Dec(), "ethOut", res.EthOut.Dec(),
		"profit", res.Profit.Dec(), "reward", res.Reward.Dec(),
		"reserve", res.Reserve.Dec(), "avgBlock", res.AverageBlock, "block", res.Block)
	r.publish(ctx, events.TokensSold{
		Account:  req.Account,
		Token:    req.Token,
		TokensIn: req.TokensIn.Clone(),
		EthOut:   res.EthOut.Clone(),
		Profit:   res.Profit.Clone(),
		Reward:   res.Reward.Clone(),
		Reserve:  res.Reserve.Clone(),
		Block:    res.Block,
	})
	return res, nil
}

func (r *Router) settleSell(ctx context.Context, req SellRequest, kind token.PaymentKind) (SellResult, error) {
	if err := validAmount(req.TokensIn); err != nil {
		return SellResult{}, err
	}
	block, err := r.blocks.BlockNumber(ctx)
	if err != nil {
		return SellResult{}, fmt.Errorf("read block: %w", err)
	}
	quote, err := r.exchange.Quote(ctx, req.Token, r.weth, req.TokensIn)
	if err != nil {
		return SellResult{}, fmt.Errorf("quote sell: %w", err)
	}
	batch, res, err := r.stageSell(ctx, req, quote, block)
	if err != nil {
		return SellResult{}, err
	}

	out, err := r.exchange.SwapExactInput(ctx, req.Token, r.weth, req.TokensIn, floor(req.MinEthOut), req.Deadline)
	if err != nil {
		return SellResult{}, fmt.Errorf("swap: %w", err)
	}
	if !out.Eq(quote) {
		if batch, res, err = r.stageSell(ctx, req, out, block); err != nil {
			return SellResult{}, err
		}
	}

	if !res.Reward.IsZero() {
		if err := r.minter.Mint(ctx, req.Account, res.Reward); err != nil {
			return SellResult{}, fmt.Errorf("mint reward: %w", err)
		}
	}
	if err := r.treasury.Pay(ctx, req.Account, out, kind); err != nil {
		return SellResult{}, fmt.Errorf("pay proceeds: %w", err)
	}
	if err := batch.Commit(ctx); err != nil {
		r.logger.Error("ledger commit failed after swap",
			"account", req.Account.Hex(), "token", req.Token.Hex(), "ethOut", out.Dec(), "err", err)
		return SellResult{}, fmt.Errorf("commit sell: %w", err)
	}
	return res, nil
}

func (r *Router) stageSell(ctx context.Context, req SellRequest, ethOut *uint256.Int, block uint64) (*ledger.Batch, SellResult, error) {
	b := r.ledger.Begin(block)
	key := ledger.Key{Account: req.Account, Token: req.Token}

	reserve, err := b.Reserve(ctx, req.Token)
	if err != nil {
		return nil, SellResult{}, err
	}
	sale, err := b.RecordSell(ctx, key, req.TokensIn)
	if err != nil {
		return nil, SellResult{}, err
	}
	profit := realizedProfit(ethOut, sale.CostBasis)

	amount := u256.Zero()
	reserveAfter := reserve
	if r.IsTokenRewarded(req.Token) {
		if amount, err = reward.Calculate(r.epoch, sale.AverageBlock, block, profit, reserve, r.reserveLimit); err != nil {
			return nil, SellResult{}, err
		}
		if reserveAfter, err = b.DecreaseReserve(ctx, req.Token, sale.CostBasis); err != nil {
			return nil, SellResult{}, err
		}
	}

	return b, SellResult{
		EthOut:       ethOut.Clone(),
		Profit:       profit,
		Reward:       amount,
		Reserve:      reserve,
		ReserveAfter: reserveAfter,
		AverageBlock: sale.AverageBlock,
		Block:        block,
		Remaining:    sale.Remaining,
	}, nil
}

func realizedProfit(ethOut, costBasis *uint256.Int) *uint256.Int {
	if ethOut.Gt(costBasis) {
		return new(uint256.Int).Sub(ethOut, costBasis)
	}
	return u256.Zero()
}
