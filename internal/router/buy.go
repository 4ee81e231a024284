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
	"github.com/nulln0ne/vanilla-router/internal/token"
)

type BuyRequest struct {
	Account      common.Address
	Token        common.Address
	EthIn        *uint256.Int
	MinTokensOut *uint256.Int
	Deadline     time.Time
}

type BuyResult struct {
	TokensOut *uint256.Int
	// Reserve is the token's reserve after this purchase.
	Reserve  *uint256.Int
	Block    uint64
	Position ledger.Position
}

// Buy pays for tokens with the account's wrapped balance.
func (r *Router) Buy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	return r.buy(ctx, req, token.Wrapped)
}

// DepositAndBuy pays for tokens with the account's native balance.
func (r *Router) DepositAndBuy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	return r.buy(ctx, req, token.Native)
}

func (r *Router) buy(ctx context.Context, req BuyRequest, kind token.PaymentKind) (BuyResult, error) {
	start := time.Now()

	r.mu.Lock()
	res, err := r.settleBuy(ctx, req, kind)
	r.mu.Unlock()
	if err != nil {
		r.metrics.TradeFailed(metrics.SideBuy, req.Token)
		r.logger.Warn("buy rejected",
			"account", req.Account.Hex(), "token", req.Token.Hex(),
			"ethIn", dec(req.EthIn), "payment", kind.String(), "err", err)
		return BuyResult{}, err
	}

	r.metrics.TradeCommitted(metrics.SideBuy, req.Token, req.EthIn, time.Since(start).Seconds())
	if r.IsTokenRewarded(req.Token) {
		r.metrics.SetReserve(req.Token, res.Reserve)
	}
	r.logger.Debug("buy committed",
		"account", req.Account.Hex(), "token", req.Token.Hex(),
		"ethIn", req.EthIn.Dec(), "tokensOut", res.TokensOut.Dec(),
		"reserve", res.Reserve.Dec(), "block", res.Block)
	r.publish(ctx, events.TokensPurchased{
		Account:   req.Account,
		Token:     req.Token,
		EthIn:     req.EthIn.Clone(),
		TokensOut: res.TokensOut.Clone(),
		Reserve:   res.Reserve.Clone(),
		Block:     res.Block,
	})
	return res, nil
}

// settleBuy stages the ledger against a quote before any funds move, so
// accounting failures abort with nothing to undo. The swap is bounded by the
// caller's floor only and the batch is restaged when the fill differs from
// the quote. A failed swap refunds the collected payment.
func (r *Router) settleBuy(ctx context.Context, req BuyRequest, kind token.PaymentKind) (BuyResult, error) {
	if err := validAmount(req.EthIn); err != nil {
		return BuyResult{}, err
	}
	block, err := r.blocks.BlockNumber(ctx)
	if err != nil {
		return BuyResult{}, fmt.Errorf("read block: %w", err)
	}
	quote, err := r.exchange.Quote(ctx, r.weth, req.Token, req.EthIn)
	if err != nil {
		return BuyResult{}, fmt.Errorf("quote buy: %w", err)
	}
	batch, res, err := r.stageBuy(ctx, req, quote, block)
	if err != nil {
		return BuyResult{}, err
	}

	if err := r.treasury.Collect(ctx, req.Account, req.EthIn, kind); err != nil {
		return BuyResult{}, fmt.Errorf("collect payment: %w", err)
	}
	out, err := r.exchange.SwapExactInput(ctx, r.weth, req.Token, req.EthIn, floor(req.MinTokensOut), req.Deadline)
	if err != nil {
		r.refund(ctx, req.Account, req.EthIn, kind)
		return BuyResult{}, fmt.Errorf("swap: %w", err)
	}
	if !out.Eq(quote) {
		if batch, res, err = r.stageBuy(ctx, req, out, block); err != nil {
			return BuyResult{}, err
		}
	}

	if err := batch.Commit(ctx); err != nil {
		r.logger.Error("ledger commit failed after swap",
			"account", req.Account.Hex(), "token", req.Token.Hex(), "tokensOut", out.Dec(), "err", err)
		return BuyResult{}, fmt.Errorf("commit buy: %w", err)
	}
	return res, nil
}

func (r *Router) stageBuy(ctx context.Context, req BuyRequest, tokensOut *uint256.Int, block uint64) (*ledger.Batch, BuyResult, error) {
	b := r.ledger.Begin(block)
	key := ledger.Key{Account: req.Account, Token: req.Token}

	pos, err := b.RecordBuy(ctx, key, req.EthIn, tokensOut, block)
	if err != nil {
		return nil, BuyResult{}, err
	}
	reserve, err := b.IncreaseReserve(ctx, req.Token, req.EthIn)
	if err != nil {
		return nil, BuyResult{}, err
	}
	return b, BuyResult{TokensOut: tokensOut.Clone(), Reserve: reserve, Block: block, Position: pos}, nil
}

func (r *Router) refund(ctx context.Context, account common.Address, amount *uint256.Int, kind token.PaymentKind) {
	if err := r.treasury.Pay(ctx, account, amount, kind); err != nil {
		r.logger.Error("refund failed", "account", account.Hex(), "amount", amount.Dec(), "payment", kind.String(), "err", err)
	}
}
