package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/nulln0ne/vanilla-router/internal/amm"
	"github.com/nulln0ne/vanilla-router/internal/chain"
	"github.com/nulln0ne/vanilla-router/internal/events"
	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/metrics"
	"github.com/nulln0ne/vanilla-router/internal/reward"
	"github.com/nulln0ne/vanilla-router/internal/token"
	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

var (
	weth   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000ca201")

	now      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deadline = now.Add(time.Hour)
)

const (
	aliceTokens = "977508480891032805851"
	bobTokens   = "8016307043554476019774"
	aliceEthOut = "14161042504234076056"
	aliceProfit = "4161042504234076056"
	aliceReward = "98166263920396645"
)

type fixture struct {
	router   *Router
	pool     *amm.Pool
	blocks   *chain.Counter
	treasury *token.Treasury
	rewards  *token.Ledger
	recorder *events.Recorder
	store    *ledger.MemoryStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func newPool(t testingT) *amm.Pool {
	t.Helper()
	pool := amm.NewPool(weth, amm.WithClock(func() time.Time { return now }))
	require.NoError(t, pool.AddLiquidity(tokenA, u256.Ether(50000), u256.Ether(500)))
	require.NoError(t, pool.AddLiquidity(tokenB, u256.Ether(50000), u256.Ether(500)))
	return pool
}

func newFixture(t testingT, startBlock uint64) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		pool:     newPool(t),
		blocks:   chain.NewCounter(startBlock),
		treasury: token.NewTreasury(token.NewLedger("ETH"), token.NewLedger("WETH")),
		rewards:  token.NewLedger("VNL"),
		recorder: events.NewRecorder(),
		store:    ledger.NewMemoryStore(),
	}
	for _, acct := range []common.Address{alice, bob} {
		require.NoError(t, f.treasury.Pay(ctx, acct, u256.Ether(1000), token.Wrapped))
		require.NoError(t, f.treasury.Pay(ctx, acct, u256.Ether(1000), token.Native))
	}

	r, err := New(ctx, discardLogger(), testConfig(), f.deps())
	require.NoError(t, err)
	f.router = r
	return f
}

func testConfig() Config {
	return Config{
		ReserveLimit: u256.Ether(100),
		Safelist:     []common.Address{tokenA},
	}
}

// deps wires a router to the fixture's collaborators.
func (f *fixture) deps() Deps {
	return Deps{
		Exchange:  f.pool,
		Store:     f.store,
		Minter:    f.rewards,
		Treasury:  f.treasury,
		Blocks:    f.blocks,
		Publisher: f.recorder,
		Metrics:   metrics.NewCollector("test"),
	}
}

func (f *fixture) buy(t *testing.T, acct, tok common.Address, eth *uint256.Int) BuyResult {
	t.Helper()
	res, err := f.router.Buy(context.Background(), BuyRequest{Account: acct, Token: tok, EthIn: eth, Deadline: deadline})
	require.NoError(t, err)
	return res
}

// scenario: epoch 1, alice buys 10 ether and bob 100 ether of tok at block 2,
// then the chain moves to block 4.
func (f *fixture) scenario(t *testing.T, tok common.Address) {
	t.Helper()
	f.blocks.Advance(1)
	a := f.buy(t, alice, tok, u256.Ether(10))
	require.Equal(t, aliceTokens, a.TokensOut.Dec())
	b := f.buy(t, bob, tok, u256.Ether(100))
	require.Equal(t, bobTokens, b.TokensOut.Dec())
	f.blocks.Advance(2)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	deps := Deps{
		Exchange: newPool(t),
		Store:    ledger.NewMemoryStore(),
		Minter:   token.NewLedger("VNL"),
		Treasury: token.NewTreasury(token.NewLedger("ETH"), token.NewLedger("WETH")),
		Blocks:   chain.NewCounter(13),
	}

	_, err := New(ctx, discardLogger(), Config{ReserveLimit: u256.Ether(100)}, deps)
	require.True(t, errors.Is(err, ErrEmptySafelist))

	_, err = New(ctx, discardLogger(), Config{Safelist: []common.Address{tokenA, tokenC}}, deps)
	require.True(t, errors.Is(err, ErrTokenNotTradable))

	r, err := New(ctx, discardLogger(), Config{ReserveLimit: u256.Ether(100), Safelist: []common.Address{tokenA}}, deps)
	require.NoError(t, err)
	require.Equal(t, uint64(13), r.Epoch())
	require.Equal(t, u256.Ether(100).Dec(), r.ReserveLimit().Dec())
	require.True(t, r.IsTokenRewarded(tokenA))
	require.False(t, r.IsTokenRewarded(tokenB))
	require.Equal(t, []common.Address{tokenA}, r.Safelist())
}

func TestBuy_RecordsPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 13)
	f.blocks.Advance(1)

	res := f.buy(t, alice, tokenA, u256.Ether(5))
	out := uint256.MustFromDecimal("493579017198530649425")
	require.Equal(t, out.Dec(), res.TokensOut.Dec())
	require.Equal(t, uint64(14), res.Block)
	require.Equal(t, u256.Ether(5).Dec(), res.Reserve.Dec())

	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, u256.Ether(5).Dec(), pos.EtherSum.Dec())
	require.Equal(t, out.Dec(), pos.TokenSum.Dec())
	require.Equal(t, new(uint256.Int).Mul(out, uint256.NewInt(14)).Dec(), pos.WeightedBlockSum.Dec())
	require.Equal(t, uint64(14), pos.LatestBlock)

	reserve, err := f.router.WethReserve(ctx, tokenA)
	require.NoError(t, err)
	require.Equal(t, u256.Ether(5).Dec(), reserve.Dec())
	require.Equal(t, u256.Ether(995).Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())

	purchases := f.recorder.Purchases()
	require.Len(t, purchases, 1)
	require.Equal(t, alice, purchases[0].Account)
	require.Equal(t, out.Dec(), purchases[0].TokensOut.Dec())
	require.Equal(t, u256.Ether(5).Dec(), purchases[0].Reserve.Dec())
	require.Equal(t, uint64(14), purchases[0].Block)
}

func TestBuy_Accumulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	first := f.buy(t, alice, tokenA, u256.Ether(1))
	f.blocks.Advance(4)
	second := f.buy(t, alice, tokenA, u256.Ether(2))

	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, u256.Ether(3).Dec(), pos.EtherSum.Dec())
	require.Equal(t, new(uint256.Int).Add(first.TokensOut, second.TokensOut).Dec(), pos.TokenSum.Dec())

	weighted := new(uint256.Int).Mul(first.TokensOut, uint256.NewInt(1))
	weighted.Add(weighted, new(uint256.Int).Mul(second.TokensOut, uint256.NewInt(5)))
	require.Equal(t, weighted.Dec(), pos.WeightedBlockSum.Dec())
	require.Equal(t, uint64(5), pos.LatestBlock)
	require.Equal(t, u256.Ether(3).Dec(), second.Reserve.Dec())
}

func TestSell_Reward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)

	res, err := f.router.Sell(ctx, SellRequest{
		Account:  alice,
		Token:    tokenA,
		TokensIn: uint256.MustFromDecimal(aliceTokens),
		Deadline: deadline,
	})
	require.NoError(t, err)
	require.Equal(t, aliceEthOut, res.EthOut.Dec())
	require.Equal(t, aliceProfit, res.Profit.Dec())
	require.Equal(t, aliceReward, res.Reward.Dec())
	require.Equal(t, u256.Ether(110).Dec(), res.Reserve.Dec())
	require.Equal(t, u256.Ether(100).Dec(), res.ReserveAfter.Dec())
	require.Equal(t, uint64(2), res.AverageBlock)
	require.Equal(t, uint64(4), res.Block)
	require.True(t, res.Remaining.IsEmpty())

	require.Equal(t, aliceReward, f.rewards.BalanceOf(alice).Dec())
	wantWETH := new(uint256.Int).Add(u256.Ether(990), uint256.MustFromDecimal(aliceEthOut))
	require.Equal(t, wantWETH.Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())

	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.True(t, pos.IsEmpty())
	require.True(t, pos.EtherSum.IsZero())
	require.Zero(t, pos.LatestBlock)

	sales := f.recorder.Sales()
	require.Len(t, sales, 1)
	require.Equal(t, aliceReward, sales[0].Reward.Dec())
	require.Equal(t, u256.Ether(110).Dec(), sales[0].Reserve.Dec())
}

func TestSell_ReserveSaturation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)
	_, err := f.router.Sell(ctx, SellRequest{Account: alice, Token: tokenA, TokensIn: uint256.MustFromDecimal(aliceTokens), Deadline: deadline})
	require.NoError(t, err)

	f.blocks.Advance(6)
	half := new(uint256.Int).Rsh(uint256.MustFromDecimal(bobTokens), 1)
	res, err := f.router.Sell(ctx, SellRequest{Account: bob, Token: tokenA, TokensIn: half, Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, "51784658342884668528", res.EthOut.Dec())
	require.Equal(t, "1784658342884668528", res.Profit.Dec())
	require.True(t, res.Reward.IsZero())
	require.Equal(t, u256.Ether(100).Dec(), res.Reserve.Dec())
	require.Equal(t, u256.Ether(50).Dec(), res.ReserveAfter.Dec())

	require.Equal(t, u256.Ether(50).Dec(), res.Remaining.EtherSum.Dec())
	require.Equal(t, uint64(2), res.Remaining.LatestBlock)
	avg, err := res.Remaining.AverageBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(2), avg)
	require.True(t, f.rewards.BalanceOf(bob).IsZero())
}

func TestSell_NotSafelisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenB)

	res, err := f.router.Sell(ctx, SellRequest{Account: alice, Token: tokenB, TokensIn: uint256.MustFromDecimal(aliceTokens), Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, aliceEthOut, res.EthOut.Dec())
	require.Equal(t, aliceProfit, res.Profit.Dec())
	require.True(t, res.Reward.IsZero())
	require.True(t, res.Reserve.IsZero())

	reserve, err := f.router.WethReserve(ctx, tokenB)
	require.NoError(t, err)
	require.True(t, reserve.IsZero())
	require.True(t, f.rewards.TotalSupply().IsZero())
}

func TestSell_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)
	before, _ := f.pool.Reserves(tokenA)

	tooMany := new(uint256.Int).AddUint64(uint256.MustFromDecimal(aliceTokens), 1)
	_, err := f.router.Sell(ctx, SellRequest{Account: alice, Token: tokenA, TokensIn: tooMany, Deadline: deadline})
	require.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	after, _ := f.pool.Reserves(tokenA)
	require.Equal(t, before.WETH.Dec(), after.WETH.Dec())
	require.Equal(t, before.Token.Dec(), after.Token.Dec())

	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, aliceTokens, pos.TokenSum.Dec())
	reserve, err := f.router.WethReserve(ctx, tokenA)
	require.NoError(t, err)
	require.Equal(t, u256.Ether(110).Dec(), reserve.Dec())
	require.Empty(t, f.recorder.Sales())

	_, err = f.router.Sell(ctx, SellRequest{Account: carol, Token: tokenA, TokensIn: uint256.NewInt(1), Deadline: deadline})
	require.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
}

func TestBuy_SlippageRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.router.Buy(ctx, BuyRequest{
		Account:      alice,
		Token:        tokenA,
		EthIn:        u256.Ether(5),
		MinTokensOut: u256.Ether(1000),
		Deadline:     deadline,
	})
	require.True(t, errors.Is(err, amm.ErrSlippageExceeded))
	require.Equal(t, u256.Ether(1000).Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())

	r, _ := f.pool.Reserves(tokenA)
	require.Equal(t, u256.Ether(500).Dec(), r.WETH.Dec())

	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.True(t, pos.IsEmpty())
	reserve, err := f.router.WethReserve(ctx, tokenA)
	require.NoError(t, err)
	require.True(t, reserve.IsZero())
	require.Empty(t, f.recorder.Events())
}

func TestSell_SlippageLeavesState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)

	_, err := f.router.Sell(ctx, SellRequest{
		Account:   alice,
		Token:     tokenA,
		TokensIn:  uint256.MustFromDecimal(aliceTokens),
		MinEthOut: u256.Ether(15),
		Deadline:  deadline,
	})
	require.True(t, errors.Is(err, amm.ErrSlippageExceeded))
	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, aliceTokens, pos.TokenSum.Dec())
	require.True(t, f.rewards.TotalSupply().IsZero())
}

func TestBuy_DeadlineExpired(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.router.Buy(context.Background(), BuyRequest{
		Account:  alice,
		Token:    tokenA,
		EthIn:    u256.Ether(1),
		Deadline: now.Add(-time.Second),
	})
	require.True(t, errors.Is(err, amm.ErrDeadlineExpired))
	require.Equal(t, u256.Ether(1000).Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())
}

func TestBuy_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	_, err := f.router.Buy(ctx, BuyRequest{Account: carol, Token: tokenA, EthIn: u256.Ether(1), Deadline: deadline})
	require.True(t, errors.Is(err, token.ErrInsufficientFunds))

	_, err = f.router.Buy(ctx, BuyRequest{Account: alice, Token: tokenA, EthIn: u256.Zero(), Deadline: deadline})
	require.True(t, errors.Is(err, ErrZeroAmount))

	_, err = f.router.Buy(ctx, BuyRequest{Account: alice, Token: tokenC, EthIn: u256.Ether(1), Deadline: deadline})
	require.True(t, errors.Is(err, amm.ErrUnknownPair))

	require.Empty(t, f.recorder.Events())
}

func TestNativePaymentPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	res, err := f.router.DepositAndBuy(ctx, BuyRequest{Account: alice, Token: tokenA, EthIn: u256.Ether(5), Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, u256.Ether(995).Dec(), f.treasury.Native().BalanceOf(alice).Dec())
	require.Equal(t, u256.Ether(1000).Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())

	sold, err := f.router.SellAndWithdraw(ctx, SellRequest{Account: alice, Token: tokenA, TokensIn: res.TokensOut, Deadline: deadline})
	require.NoError(t, err)
	want := new(uint256.Int).Add(u256.Ether(995), sold.EthOut)
	require.Equal(t, want.Dec(), f.treasury.Native().BalanceOf(alice).Dec())
	require.Equal(t, u256.Ether(1000).Dec(), f.treasury.Wrapped().BalanceOf(alice).Dec())
	// round trip through the fee loses value
	require.True(t, sold.Profit.IsZero())
	require.True(t, sold.Reward.IsZero())
}

func TestEstimateReward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)
	sold := uint256.MustFromDecimal(aliceTokens)

	est, err := f.router.EstimateReward(ctx, alice, tokenA, nil, sold)
	require.NoError(t, err)
	require.Equal(t, aliceEthOut, est.EthOut.Dec())
	require.Equal(t, aliceProfit, est.Profit.Dec())
	require.Equal(t, aliceReward, est.Reward.Dec())
	require.Equal(t, "444444444444444444", est.HTRS.Dec())
	require.Equal(t, "53081431779690217", est.VPC.Dec())
	require.Equal(t, u256.Ether(110).Dec(), est.Reserve.Dec())
	require.Equal(t, uint64(2), est.AverageBlock)
	require.Equal(t, uint64(4), est.Block)

	explicit, err := f.router.EstimateReward(ctx, alice, tokenA, u256.Ether(10), sold)
	require.NoError(t, err)
	require.True(t, explicit.Profit.IsZero())
	require.True(t, explicit.Reward.IsZero())

	// estimating writes nothing
	pos, err := f.router.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, aliceTokens, pos.TokenSum.Dec())

	res, err := f.router.Sell(ctx, SellRequest{Account: alice, Token: tokenA, TokensIn: sold, Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, est.Reward.Dec(), res.Reward.Dec())
}

func TestEstimateReward_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.scenario(t, tokenA)
	f.buy(t, alice, tokenB, u256.Ether(1))

	_, err := f.router.EstimateReward(ctx, alice, tokenB, nil, uint256.NewInt(1))
	require.True(t, errors.Is(err, ErrNotEligible))

	_, err = f.router.EstimateReward(ctx, carol, tokenA, nil, uint256.NewInt(1))
	require.True(t, errors.Is(err, ErrNotEligible))

	tooMany := new(uint256.Int).AddUint64(uint256.MustFromDecimal(aliceTokens), 1)
	_, err = f.router.EstimateReward(ctx, alice, tokenA, nil, tooMany)
	require.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
}

func TestConcurrentBuys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	const n = 32
	accounts := make([]common.Address, n)
	for i := range accounts {
		accounts[i] = common.BigToAddress(uint256.NewInt(uint64(0x1000 + i)).ToBig())
		require.NoError(t, f.treasury.Pay(ctx, accounts[i], u256.Ether(1), token.Wrapped))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, acct := range accounts {
		wg.Add(1)
		go func(acct common.Address) {
			defer wg.Done()
			_, err := f.router.Buy(ctx, BuyRequest{Account: acct, Token: tokenA, EthIn: u256.Ether(1), Deadline: deadline})
			errs <- err
		}(acct)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reserve, err := f.router.WethReserve(ctx, tokenA)
	require.NoError(t, err)
	require.Equal(t, u256.Ether(n).Dec(), reserve.Dec())

	total := u256.Zero()
	for _, acct := range accounts {
		pos, err := f.router.TokenPriceData(ctx, acct, tokenA)
		require.NoError(t, err)
		total.Add(total, pos.TokenSum)
	}
	pool, _ := f.pool.Reserves(tokenA)
	require.Equal(t, new(uint256.Int).Sub(u256.Ether(50000), pool.Token).Dec(), total.Dec())
	require.Len(t, f.recorder.Purchases(), n)
}

func TestNew_RestartKeepsEpoch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.buy(t, alice, tokenA, u256.Ether(10))
	f.buy(t, bob, tokenA, u256.Ether(100))

	height, err := f.store.Height(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), height)

	deps := f.deps()
	deps.Blocks = chain.NewCounter(1000)
	restarted, err := New(ctx, discardLogger(), testConfig(), deps)
	require.NoError(t, err)
	require.Equal(t, uint64(10), restarted.Epoch())

	deps.Blocks = chain.NewCounter(1010)
	restarted, err = New(ctx, discardLogger(), testConfig(), deps)
	require.NoError(t, err)
	res, err := restarted.Sell(ctx, SellRequest{
		Account:  alice,
		Token:    tokenA,
		TokensIn: uint256.MustFromDecimal(aliceTokens),
		Deadline: deadline,
	})
	require.NoError(t, err)
	require.Equal(t, aliceProfit, res.Profit.Dec())
	require.Equal(t, uint64(10), res.AverageBlock)

	want, err := reward.Calculate(10, 10, 1010, res.Profit, u256.Ether(110), u256.Ether(100))
	require.NoError(t, err)
	require.Equal(t, want.Dec(), res.Reward.Dec())
	require.False(t, res.Reward.IsZero())
	require.False(t, res.Reward.Gt(res.Profit), "reward %s above profit %s", res.Reward.Dec(), res.Profit.Dec())

	deps.Blocks = chain.NewCounter(5)
	_, err = New(ctx, discardLogger(), testConfig(), deps)
	require.ErrorIs(t, err, ErrBlockBeforeEpoch)
}

// overquoting promises one unit more than the pool delivers.
type overquoting struct {
	*amm.Pool
}

func (o overquoting) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	q, err := o.Pool.Quote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).AddUint64(q, 1), nil
}

func TestTrade_CallerFloorBoundsSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	deps := f.deps()
	deps.Exchange = overquoting{f.pool}
	r, err := New(ctx, discardLogger(), testConfig(), deps)
	require.NoError(t, err)

	bought, err := r.Buy(ctx, BuyRequest{
		Account:      alice,
		Token:        tokenA,
		EthIn:        u256.Ether(1),
		MinTokensOut: uint256.NewInt(1),
		Deadline:     deadline,
	})
	require.NoError(t, err)
	require.Equal(t, "99501593821919093327", bought.TokensOut.Dec())
	require.Equal(t, bought.TokensOut.Dec(), bought.Position.TokenSum.Dec())

	pos, err := r.TokenPriceData(ctx, alice, tokenA)
	require.NoError(t, err)
	require.Equal(t, "99501593821919093327", pos.TokenSum.Dec())

	expected, err := f.pool.Quote(ctx, tokenA, weth, pos.TokenSum)
	require.NoError(t, err)
	sold, err := r.Sell(ctx, SellRequest{Account: alice, Token: tokenA, TokensIn: pos.TokenSum, Deadline: deadline})
	require.NoError(t, err)
	require.Equal(t, expected.Dec(), sold.EthOut.Dec())
	require.True(t, sold.Remaining.IsEmpty())

	require.Len(t, f.recorder.Sales(), 1)
	require.Equal(t, expected.Dec(), f.recorder.Sales()[0].EthOut.Dec())
}

// gatedPublisher blocks every Publish until release is closed.
type gatedPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPublisher) Publish(context.Context, events.Event) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func TestPublish_DoesNotBlockQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	gate := &gatedPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	deps := f.deps()
	deps.Publisher = gate
	r, err := New(ctx, discardLogger(), testConfig(), deps)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Buy(ctx, BuyRequest{Account: alice, Token: tokenA, EthIn: u256.Ether(1), Deadline: deadline})
		done <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("buy never published")
	}

	queried := make(chan ledger.Position, 1)
	go func() {
		pos, _ := r.TokenPriceData(ctx, alice, tokenA)
		queried <- pos
	}()
	select {
	case pos := <-queried:
		require.Equal(t, "99501593821919093327", pos.TokenSum.Dec())
	case <-time.After(5 * time.Second):
		t.Fatal("position query stalled behind a pending publish")
	}

	close(gate.release)
	require.NoError(t, <-done)
}
