package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nulln0ne/vanilla-router/internal/amm"
	"github.com/nulln0ne/vanilla-router/internal/chain"
	"github.com/nulln0ne/vanilla-router/internal/config"
	"github.com/nulln0ne/vanilla-router/internal/eth"
	"github.com/nulln0ne/vanilla-router/internal/events"
	"github.com/nulln0ne/vanilla-router/internal/handler"
	"github.com/nulln0ne/vanilla-router/internal/ledger"
	"github.com/nulln0ne/vanilla-router/internal/logging"
	"github.com/nulln0ne/vanilla-router/internal/metrics"
	"github.com/nulln0ne/vanilla-router/internal/router"
	"github.com/nulln0ne/vanilla-router/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	app := fiber.New()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ethereumClient *ethclient.Client
	if cfg.RPCEndpoint != "" {
		if ethereumClient, err = eth.Dial(ctx, cfg.RPCEndpoint); err != nil {
			return fmt.Errorf("failed to connect to Ethereum node: %w", err)
		}
		defer ethereumClient.Close()
	}

	pool := amm.NewPool(cfg.WETH)
	if err := seedPool(ctx, logger, cfg, pool, ethereumClient); err != nil {
		return err
	}

	var store ledger.Store = ledger.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := ledger.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), "vanilla:")
		defer redisStore.Close()
		store = redisStore
	}

	var blocks router.BlockSource
	if ethereumClient != nil {
		blocks = chain.NewRPC(ethereumClient)
	} else {
		// resume the local chain where the ledger left off
		height, err := store.Height(ctx)
		if err != nil {
			return fmt.Errorf("failed to read ledger height: %w", err)
		}
		counter := chain.NewCounter(max(height, 1))
		go counter.Run(ctx, cfg.BlockInterval)
		blocks = counter
	}

	var publishers events.Multi
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
	}

	collector := metrics.NewCollector("vanilla")
	rewards := token.NewLedger("VNL")
	treasury := token.NewTreasury(token.NewLedger("ETH"), token.NewLedger("WETH"))

	r, err := router.New(ctx, logger, router.Config{
		ReserveLimit: cfg.ReserveLimit,
		Safelist:     cfg.Safelist,
	}, router.Deps{
		Exchange:  pool,
		Store:     store,
		Minter:    rewards,
		Treasury:  treasury,
		Blocks:    blocks,
		Publisher: publishers,
		Metrics:   collector,
	})
	if err != nil {
		return fmt.Errorf("failed to construct router: %w", err)
	}

	routerHandler := handler.NewRouterHandler(logger, r)
	routerHandler.Routes(app)
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = app.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_ = app.ShutdownWithContext(shutdownCtx)
	return nil
}

// seedPool adds the configured liquidity and the reserves of every
// configured on-chain pair to pool.
func seedPool(ctx context.Context, logger *slog.Logger, cfg *config.Config, pool *amm.Pool, client *ethclient.Client) error {
	for _, seed := range cfg.Pools {
		if err := pool.AddLiquidity(seed.Token, seed.TokenReserve, seed.WETHReserve); err != nil {
			return fmt.Errorf("seed pool %s: %w", seed.Token.Hex(), err)
		}
	}
	if len(cfg.Pairs) == 0 {
		return nil
	}

	reader := eth.NewPairReader(logger, client)
	for _, pair := range cfg.Pairs {
		state, err := reader.ReadPair(ctx, pair)
		if err != nil {
			return fmt.Errorf("read pair %s: %w", pair.Hex(), err)
		}
		tok, tokenReserve, wethReserve, err := state.WETHSide(cfg.WETH)
		if err != nil {
			return err
		}
		if err := pool.AddLiquidity(tok, tokenReserve, wethReserve); err != nil {
			return fmt.Errorf("seed pool %s from pair %s: %w", tok.Hex(), pair.Hex(), err)
		}
		logger.Info("pool seeded from chain", "pair", pair.Hex(), "token", tok.Hex(), "block", state.Block,
			"tokenReserve", tokenReserve.Dec(), "wethReserve", wethReserve.Dec())
	}
	return nil
}
