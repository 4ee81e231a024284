// Package amm contains an in-process Uniswap V2 style exchange made of
// WETH/token constant-product pairs.
package amm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
	"github.com/nulln0ne/vanilla-router/pkg/uniswapv2"
)

// Reserves is the state of one WETH/token pair.
type Reserves struct {
	Token *uint256.Int
	WETH  *uint256.Int
}

// Pool routes single-hop swaps between WETH and any token that has a pair.
// It is safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	weth  common.Address
	pairs map[common.Address]*Reserves
	now   func() time.Time
}

type Option func(*Pool)

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func NewPool(weth common.Address, opts ...Option) *Pool {
	p := &Pool{
		weth:  weth,
		pairs: make(map[common.Address]*Reserves),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) WETH() common.Address { return p.weth }

// AddLiquidity creates the token/WETH pair on first use and adds to its reserves.
func (p *Pool) AddLiquidity(token common.Address, tokenAmount, wethAmount *uint256.Int) error {
	if token == p.weth {
		return ErrSameToken
	}
	if tokenAmount.IsZero() || wethAmount.IsZero() {
		return ErrZeroLiquidity
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.pairs[token]
	if !ok {
		p.pairs[token] = &Reserves{Token: tokenAmount.Clone(), WETH: wethAmount.Clone()}
		return nil
	}
	nextToken, err := u256.Add(r.Token, tokenAmount)
	if err != nil {
		return err
	}
	nextWETH, err := u256.Add(r.WETH, wethAmount)
	if err != nil {
		return err
	}
	r.Token, r.WETH = nextToken, nextWETH
	return nil
}

// Reserves returns a copy of the pair reserves for token.
func (p *Pool) Reserves(token common.Address) (Reserves, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.pairs[token]
	if !ok {
		return Reserves{}, false
	}
	return Reserves{Token: r.Token.Clone(), WETH: r.WETH.Clone()}, true
}

func (p *Pool) HasPair(_ context.Context, token common.Address) (bool, error) {
	_, ok := p.Reserves(token)
	return ok, nil
}

// Quote returns the output of swapping amountIn without executing it.
func (p *Pool) Quote(_ context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out, _, err := p.quote(tokenIn, tokenOut, amountIn)
	return out, err
}

// SwapExactInput executes a swap of amountIn and fails without touching the
// reserves if the output is below minAmountOut or the deadline has passed.
func (p *Pool) SwapExactInput(_ context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut *uint256.Int, deadline time.Time) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().After(deadline) {
		return nil, ErrDeadlineExpired
	}
	out, pair, err := p.quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	if out.Lt(minAmountOut) {
		return nil, fmt.Errorf("got %s, want at least %s: %w", out.Dec(), minAmountOut.Dec(), ErrSlippageExceeded)
	}

	// out < reserveOut always holds for the constant-product quote.
	if tokenIn == p.weth {
		nextWETH, err := u256.Add(pair.WETH, amountIn)
		if err != nil {
			return nil, err
		}
		pair.WETH, pair.Token = nextWETH, new(uint256.Int).Sub(pair.Token, out)
	} else {
		nextToken, err := u256.Add(pair.Token, amountIn)
		if err != nil {
			return nil, err
		}
		pair.Token, pair.WETH = nextToken, new(uint256.Int).Sub(pair.WETH, out)
	}
	return out, nil
}

func (p *Pool) quote(tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, *Reserves, error) {
	if tokenIn == tokenOut {
		return nil, nil, ErrSameToken
	}
	var (
		token  common.Address
		buying bool
	)
	switch {
	case tokenIn == p.weth:
		token, buying = tokenOut, true
	case tokenOut == p.weth:
		token = tokenIn
	default:
		return nil, nil, ErrUnsupportedPath
	}
	pair, ok := p.pairs[token]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", token.Hex(), ErrUnknownPair)
	}

	var (
		out *uint256.Int
		err error
	)
	if buying {
		out, err = uniswapv2.GetAmountOut(amountIn, pair.WETH, pair.Token)
	} else {
		out, err = uniswapv2.GetAmountOut(amountIn, pair.Token, pair.WETH)
	}
	if err != nil {
		return nil, nil, err
	}
	return out, pair, nil
}
