package eth

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
)

// PairState is a snapshot of a Uniswap V2 pair read at a single block.
type PairState struct {
	Pair     common.Address
	Token0   common.Address
	Token1   common.Address
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
	Block    uint64
}

// WETHSide orients the pair around weth and returns the other token with
// both reserves.
func (s PairState) WETHSide(weth common.Address) (token common.Address, tokenReserve, wethReserve *uint256.Int, err error) {
	switch weth {
	case s.Token0:
		return s.Token1, s.Reserve1, s.Reserve0, nil
	case s.Token1:
		return s.Token0, s.Reserve0, s.Reserve1, nil
	default:
		return common.Address{}, nil, nil, fmt.Errorf("pair %s: %w", s.Pair.Hex(), ErrNotWETHPair)
	}
}

// PairReader reads Uniswap V2 pair storage directly.
type PairReader struct {
	logger *slog.Logger
	client *ethclient.Client
}

func NewPairReader(logger *slog.Logger, client *ethclient.Client) *PairReader {
	return &PairReader{logger: logger, client: client}
}

// contract UniswapV2Pair is IUniswapV2Pair, UniswapV2ERC20 {
//     address public factory;
//     address public token0;              // slot 6
//     address public token1;              // slot 7
//
//     uint112 private reserve0;           // uses single storage slot, accessible via getReserves
//     uint112 private reserve1;           // uses single storage slot, accessible via getReserves
//     uint32  private blockTimestampLast; // uses single storage slot, accessible via getReserves

// ReadPair loads tokens and reserves of pair at the latest block.
func (r *PairReader) ReadPair(ctx context.Context, pair common.Address) (PairState, error) {
	bn, err := r.client.BlockNumber(ctx)
	if err != nil {
		return PairState{}, fmt.Errorf("block number: %w", err)
	}
	blockNum := new(big.Int).SetUint64(bn)

	token0, token1, err := r.loadTokens(ctx, pair, blockNum)
	if err != nil {
		return PairState{}, err
	}

	// reserves (uint112 | uint112 | uint32) are packed into a single 32‑byte slot (slot 8)
	br, err := r.readSlot(ctx, pair, blockNum, 8)
	if err != nil {
		return PairState{}, err
	}
	reserve0, reserve1 := parseReserves(br)
	if reserve0.IsZero() || reserve1.IsZero() {
		return PairState{}, fmt.Errorf("pair %s: %w", pair.Hex(), ErrEmptyReserves)
	}

	r.logger.Debug("pair loaded", "pair", pair.Hex(), "token0", token0.Hex(), "token1", token1.Hex(),
		"reserve0", reserve0.Dec(), "reserve1", reserve1.Dec(), "block", bn)

	return PairState{
		Pair:     pair,
		Token0:   token0,
		Token1:   token1,
		Reserve0: reserve0,
		Reserve1: reserve1,
		Block:    bn,
	}, nil
}

func (r *PairReader) readSlot(ctx context.Context, pair common.Address, blockNum *big.Int, slot uint64) ([]byte, error) {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	b, err := r.client.StorageAt(ctx, pair, key, blockNum)
	if err != nil {
		return nil, fmt.Errorf("storageAt slot %d (pair %s, block %s): %w",
			slot, pair.Hex(), blockNum.String(), err)
	}
	return b, nil
}

func (r *PairReader) loadTokens(ctx context.Context, pair common.Address, blockNum *big.Int) (common.Address, common.Address, error) {
	b0, err := r.readSlot(ctx, pair, blockNum, 6)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	b1, err := r.readSlot(ctx, pair, blockNum, 7)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return common.BytesToAddress(b0), common.BytesToAddress(b1), nil
}

// parseReserves unpacks two uint112 reserves from the 32‑byte storage word
// used by Uniswap V2 pairs. The layout is:
//
//	[ 32 bits timestamp | 112 bits reserve1 | 112 bits reserve0 ]
//
// Values are treated as big‑endian within the 256‑bit word.
func parseReserves(b []byte) (reserve0, reserve1 *uint256.Int) {
	v := new(uint256.Int).SetBytes(b)
	mask112 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))

	reserve0 = new(uint256.Int).And(v, mask112)
	tmp := new(uint256.Int).Rsh(v, 112)
	reserve1 = new(uint256.Int).And(tmp, mask112)
	return
}
