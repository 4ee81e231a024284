package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/vanilla-router/pkg/u256"
)

const (
	defaultAddr          = ":1337"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultWETH          = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	defaultReserveLimit  = "100000000000000000000"
	defaultBlockInterval = 12 * time.Second
	defaultKafkaTopic    = "vanilla-trades"
)

// PoolSeed is the initial liquidity of one in-process WETH/token pair.
type PoolSeed struct {
	Token        common.Address
	TokenReserve *uint256.Int
	WETHReserve  *uint256.Int
}

type Config struct {
	Addr          string
	LogLevel      string
	LogFormat     string
	RPCEndpoint   string
	WETH          common.Address
	ReserveLimit  *uint256.Int
	Safelist      []common.Address
	Pools         []PoolSeed
	Pairs         []common.Address
	BlockInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:          getenv("ADDR", defaultAddr),
		LogLevel:      getenv("LOG_LEVEL", defaultLogLevel),
		LogFormat:     getenv("LOG_FORMAT", defaultLogFormat),
		RPCEndpoint:   os.Getenv("ETH_RPC_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    getenv("KAFKA_TOPIC", defaultKafkaTopic),
	}

	var err error
	if cfg.WETH, err = parseAddress("WETH_ADDRESS", getenv("WETH_ADDRESS", defaultWETH)); err != nil {
		return nil, err
	}
	if cfg.ReserveLimit, err = u256.Parse(getenv("RESERVE_LIMIT", defaultReserveLimit)); err != nil {
		return nil, invalid("RESERVE_LIMIT", err)
	}

	safelist := splitList(os.Getenv("SAFELIST"))
	if len(safelist) == 0 {
		return nil, ErrMissingSafelist
	}
	for _, s := range safelist {
		addr, err := parseAddress("SAFELIST", s)
		if err != nil {
			return nil, err
		}
		cfg.Safelist = append(cfg.Safelist, addr)
	}

	for _, s := range splitList(os.Getenv("POOLS")) {
		seed, err := parsePoolSeed(s)
		if err != nil {
			return nil, err
		}
		cfg.Pools = append(cfg.Pools, seed)
	}

	for _, s := range splitList(os.Getenv("PAIRS")) {
		addr, err := parseAddress("PAIRS", s)
		if err != nil {
			return nil, err
		}
		cfg.Pairs = append(cfg.Pairs, addr)
	}
	if len(cfg.Pairs) > 0 && cfg.RPCEndpoint == "" {
		return nil, ErrPairsWithoutRPC
	}

	cfg.BlockInterval = defaultBlockInterval
	if v := os.Getenv("BLOCK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, invalid("BLOCK_INTERVAL", err)
		}
		if d <= 0 {
			return nil, invalid("BLOCK_INTERVAL", fmt.Errorf("must be positive, got %s", d))
		}
		cfg.BlockInterval = d
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		if cfg.RedisDB, err = strconv.Atoi(v); err != nil {
			return nil, invalid("REDIS_DB", err)
		}
	}

	return cfg, nil
}

// parsePoolSeed reads token:tokenReserve:wethReserve.
func parsePoolSeed(s string) (PoolSeed, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return PoolSeed{}, invalid("POOLS", fmt.Errorf("%q is not token:tokenReserve:wethReserve", s))
	}
	token, err := parseAddress("POOLS", parts[0])
	if err != nil {
		return PoolSeed{}, err
	}
	tokenReserve, err := u256.Parse(parts[1])
	if err != nil {
		return PoolSeed{}, invalid("POOLS", err)
	}
	wethReserve, err := u256.Parse(parts[2])
	if err != nil {
		return PoolSeed{}, invalid("POOLS", err)
	}
	return PoolSeed{Token: token, TokenReserve: tokenReserve, WETHReserve: wethReserve}, nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid(name, fmt.Errorf("%q is not an address", s))
	}
	return common.HexToAddress(s), nil
}

func invalid(name string, err error) error {
	return fmt.Errorf("%s: %w: %v", name, ErrInvalidValue, err)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
