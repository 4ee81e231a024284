package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

// RedisStore keeps positions as hashes and reserves as decimal strings.
// Commit runs as a single MULTI/EXEC transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

const (
	fieldEther    = "ether"
	fieldTokens   = "tokens"
	fieldWeighted = "weighted"
	fieldLatest   = "latest"
)

func (r *RedisStore) positionKey(k Key) string {
	return fmt.Sprintf("%sposition:%s:%s", r.prefix, k.Account.Hex(), k.Token.Hex())
}

func (r *RedisStore) reserveKey(token common.Address) string {
	return fmt.Sprintf("%sreserve:%s", r.prefix, token.Hex())
}

func (r *RedisStore) epochKey() string { return r.prefix + "epoch" }
func (r *RedisStore) heightKey() string { return r.prefix + "height" }

// raiseHeight sets KEYS[1] to ARGV[1] when that is higher than the stored value.
const raiseHeight = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > cur then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 0
`

func (r *RedisStore) Position(ctx context.Context, key Key) (Position, error) {
	m, err := r.client.HGetAll(ctx, r.positionKey(key)).Result()
	if err != nil {
		return Position{}, err
	}
	if len(m) == 0 {
		return EmptyPosition(), nil
	}

	var p Position
	if p.EtherSum, err = u256.Parse(m[fieldEther]); err != nil {
		return Position{}, fmt.Errorf("position %s field %s: %w", key, fieldEther, err)
	}
	if p.TokenSum, err = u256.Parse(m[fieldTokens]); err != nil {
		return Position{}, fmt.Errorf("position %s field %s: %w", key, fieldTokens, err)
	}
	if p.WeightedBlockSum, err = u256.Parse(m[fieldWeighted]); err != nil {
		return Position{}, fmt.Errorf("position %s field %s: %w", key, fieldWeighted, err)
	}
	if p.LatestBlock, err = strconv.ParseUint(m[fieldLatest], 10, 64); err != nil {
		return Position{}, fmt.Errorf("position %s field %s: %w", key, fieldLatest, err)
	}
	return p, nil
}

func (r *RedisStore) Reserve(ctx context.Context, token common.Address) (*uint256.Int, error) {
	s, err := r.client.Get(ctx, r.reserveKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return u256.Zero(), nil
	}
	if err != nil {
		return nil, err
	}
	return u256.Parse(s)
}

func (r *RedisStore) Commit(ctx context.Context, changes Changes) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, p := range changes.Positions {
			key := r.positionKey(k)
			if p.IsEmpty() {
				pipe.Del(ctx, key)
				continue
			}
			pipe.HSet(ctx, key,
				fieldEther, p.EtherSum.Dec(),
				fieldTokens, p.TokenSum.Dec(),
				fieldWeighted, p.WeightedBlockSum.Dec(),
				fieldLatest, strconv.FormatUint(p.LatestBlock, 10),
			)
		}
		for t, v := range changes.Reserves {
			pipe.Set(ctx, r.reserveKey(t), v.Dec(), 0)
		}
		pipe.Eval(ctx, raiseHeight, []string{r.heightKey()}, strconv.FormatUint(changes.Block, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit ledger changes: %w", err)
	}
	return nil
}

func (r *RedisStore) InitEpoch(ctx context.Context, candidate uint64) (uint64, error) {
	if err := r.client.SetNX(ctx, r.epochKey(), strconv.FormatUint(candidate, 10), 0).Err(); err != nil {
		return 0, err
	}
	return r.readUint(ctx, r.epochKey())
}

func (r *RedisStore) Height(ctx context.Context) (uint64, error) {
	return r.readUint(ctx, r.heightKey())
}

func (r *RedisStore) readUint(ctx context.Context, key string) (uint64, error) {
	s, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
