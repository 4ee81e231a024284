package router

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/reward"
)

// Estimate projects the reward of a sale at the current block. HTRS and VPC
// are fractions of reward.Scale.
type Estimate struct {
	EthOut       *uint256.Int
	Profit       *uint256.Int
	HTRS         *uint256.Int
	VPC          *uint256.Int
	Reserve      *uint256.Int
	Reward       *uint256.Int
	AverageBlock uint64
	Block        uint64
}

// EstimateReward projects selling tokensSold of account's position for
// ethOut. A nil ethOut is replaced by the exchange's current quote. Nothing
// is written.
func (r *Router) EstimateReward(ctx context.Context, account, tok common.Address, ethOut, tokensSold *uint256.Int) (Estimate, error) {
	if err := validAmount(tokensSold); err != nil {
		return Estimate{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.IsTokenRewarded(tok) {
		return Estimate{}, fmt.Errorf("%s is not safelisted: %w", tok.Hex(), ErrNotEligible)
	}
	pos, err := r.ledger.Position(ctx, ledger.Key{Account: account, Token: tok})
	if err != nil {
		return Estimate{}, err
	}
	if pos.IsEmpty() {
		return Estimate{}, fmt.Errorf("%s holds no %s: %w", account.Hex(), tok.Hex(), ErrNotEligible)
	}
	sale, err := pos.WithSell(tokensSold)
	if err != nil {
		return Estimate{}, err
	}

	if ethOut == nil {
		if ethOut, err = r.exchange.Quote(ctx, tok, r.weth, tokensSold); err != nil {
			return Estimate{}, fmt.Errorf("quote sell: %w", err)
		}
	}
	block, err := r.blocks.BlockNumber(ctx)
	if err != nil {
		return Estimate{}, fmt.Errorf("read block: %w", err)
	}
	reserve, err := r.ledger.Reserve(ctx, tok)
	if err != nil {
		return Estimate{}, err
	}

	profit := realizedProfit(ethOut, sale.CostBasis)
	b, err := reward.Explain(r.epoch, sale.AverageBlock, block, profit, reserve, r.reserveLimit)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		EthOut:       ethOut.Clone(),
		Profit:       profit,
		HTRS:         b.HTRS,
		VPC:          b.VPC,
		Reserve:      reserve,
		Reward:       b.Reward,
		AverageBlock: sale.AverageBlock,
		Block:        block,
	}, nil
}
