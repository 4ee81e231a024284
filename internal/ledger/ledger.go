package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// Ledger is the single writer of positions and reserves. Mutations are
// staged in a Batch and reach the store only on Commit.
type Ledger struct {
	store    Store
	safelist Safelist
}

func New(store Store, safelist Safelist) *Ledger {
	return &Ledger{store: store, safelist: safelist}
}

func (l *Ledger) Safelist() Safelist { return l.safelist }

func (l *Ledger) Position(ctx context.Context, key Key) (Position, error) {
	return l.store.Position(ctx, key)
}

// Reserve returns the tracked WETH reserve; zero for tokens off the safelist.
func (l *Ledger) Reserve(ctx context.Context, token common.Address) (*uint256.Int, error) {
	if !l.safelist.Contains(token) {
		return u256.Zero(), nil
	}
	return l.store.Reserve(ctx, token)
}

// InitEpoch returns the stored epoch, recording candidate on first use.
func (l *Ledger) InitEpoch(ctx context.Context, candidate uint64) (uint64, error) {
	epoch, err := l.store.InitEpoch(ctx, candidate)
	if err != nil {
		return 0, fmt.Errorf("init epoch: %w", err)
	}
	return epoch, nil
}

// Begin opens a staging batch at block reading through to the store.
func (l *Ledger) Begin(block uint64) *Batch {
	return &Batch{
		ledger:    l,
		block:     block,
		positions: make(map[Key]Position),
		reserves:  make(map[common.Address]*uint256.Int),
	}
}

// Batch is a write-ahead buffer over a Ledger. It is not safe for
// concurrent use.
type Batch struct {
	ledger    *Ledger
	positions map[Key]Position
	reserves  map[common.Address]*uint256.Int
	block     uint64
	done      bool
}

func (b *Batch) Position(ctx context.Context, key Key) (Position, error) {
	if p, ok := b.positions[key]; ok {
		return p.Clone(), nil
	}
	return b.ledger.store.Position(ctx, key)
}

func (b *Batch) Reserve(ctx context.Context, token common.Address) (*uint256.Int, error) {
	if r, ok := b.reserves[token]; ok {
		return r.Clone(), nil
	}
	return b.ledger.Reserve(ctx, token)
}

// RecordBuy adds a purchase of tokensOut for ethIn at block to the position.
func (b *Batch) RecordBuy(ctx context.Context, key Key, ethIn, tokensOut *uint256.Int, block uint64) (Position, error) {
	p, err := b.Position(ctx, key)
	if err != nil {
		return Position{}, err
	}
	next, err := p.WithBuy(ethIn, tokensOut, block)
	if err != nil {
		return Position{}, fmt.Errorf("record buy %s: %w", key, err)
	}
	b.positions[key] = next
	return next.Clone(), nil
}

// RecordSell removes tokensSold from the position.
func (b *Batch) RecordSell(ctx context.Context, key Key, tokensSold *uint256.Int) (Sale, error) {
	p, err := b.Position(ctx, key)
	if err != nil {
		return Sale{}, err
	}
	sale, err := p.WithSell(tokensSold)
	if err != nil {
		return Sale{}, fmt.Errorf("record sell %s: %w", key, err)
	}
	b.positions[key] = sale.Remaining
	return sale, nil
}

// IncreaseReserve adds amount to a safelisted token's reserve and returns the
// new value. Other tokens are not tracked and report zero.
func (b *Batch) IncreaseReserve(ctx context.Context, token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if !b.ledger.safelist.Contains(token) {
		return u256.Zero(), nil
	}
	r, err := b.Reserve(ctx, token)
	if err != nil {
		return nil, err
	}
	next, err := u256.Add(r, amount)
	if err != nil {
		return nil, fmt.Errorf("increase reserve %s: %w", token.Hex(), err)
	}
	b.reserves[token] = next
	return next.Clone(), nil
}

// DecreaseReserve subtracts amount from a safelisted token's reserve.
func (b *Batch) DecreaseReserve(ctx context.Context, token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if !b.ledger.safelist.Contains(token) {
		return u256.Zero(), nil
	}
	r, err := b.Reserve(ctx, token)
	if err != nil {
		return nil, err
	}
	next, err := u256.Sub(r, amount)
	if err != nil {
		return nil, fmt.Errorf("decrease reserve %s: %w", token.Hex(), err)
	}
	b.reserves[token] = next
	return next.Clone(), nil
}

// Commit writes every staged change to the store at once. A batch commits
// at most once.
func (b *Batch) Commit(ctx context.Context) error {
	if b.done {
		return ErrBatchClosed
	}
	b.done = true
	changes := Changes{Positions: b.positions, Reserves: b.reserves, Block: b.block}
	if changes.IsEmpty() {
		return nil
	}
	return b.ledger.store.Commit(ctx, changes)
}
