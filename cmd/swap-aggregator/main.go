package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/metaswap-labs/swap-aggregator/internal/aggregator"
	"github.com/metaswap-labs/swap-aggregator/internal/aggregator/odos"
	"github.com/metaswap-labs/swap-aggregator/internal/aggregator/oneinch"
	"github.com/metaswap-labs/swap-aggregator/internal/aggregator/zerox"
	"github.com/metaswap-labs/swap-aggregator/internal/api"
	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/events"
	"github.com/metaswap-labs/swap-aggregator/internal/gasprice"
	"github.com/metaswap-labs/swap-aggregator/internal/limitorder"
	"github.com/metaswap-labs/swap-aggregator/internal/quote"
	"github.com/metaswap-labs/swap-aggregator/internal/rate"
	"github.com/metaswap-labs/swap-aggregator/internal/relayer"
	"github.com/metaswap-labs/swap-aggregator/internal/simulator"
	"github.com/metaswap-labs/swap-aggregator/internal/txbuilder"
	"github.com/metaswap-labs/swap-aggregator/pkg/config"
	"github.com/metaswap-labs/swap-aggregator/pkg/logger"
	"github.com/metaswap-labs/swap-aggregator/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [swap-aggregator]...")

	// --- Chain RPC registry ---
	registry := chains.NewRegistry(logger.L(), cfg.RPCOverrides)

	// --- Relayer signing key ---
	signer, err := loadSigner(ctx, cfg)
	if err != nil {
		logg.Fatalw("failed to load relayer key", "error", err)
	}
	logg.Infow("relayer key loaded", "address", signer.Address().Hex())

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 10,
		Burst:             20,
		Cooldown:          1 * time.Second,
	})

	// --- Aggregator clients ---
	clients := []aggregator.Client{
		zerox.NewClient(logger.L(), rateMgr, cfg.ZeroXAPIKey, cfg.QuoteRequestTimeout),
		oneinch.NewClient(logger.L(), rateMgr, cfg.OneInchAPIKey, cfg.QuoteRequestTimeout),
		odos.NewClient(logger.L(), rateMgr, cfg.QuoteRequestTimeout),
	}

	// --- Gas price cache (optional Redis) ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPass,
		})
	} else {
		logg.Warn("REDIS_ADDR not configured; gas price caching disabled")
	}
	gasSource := gasprice.New(logger.L(), registry, rdb, cfg.GasPriceTTL)

	// --- Pipeline ---
	builder := txbuilder.NewBuilder(logger.L(), registry, gasSource)
	quoteSvc := quote.NewService(logger.L(), clients, builder)
	sim := simulator.New(logger.L(), registry)
	gaslessSvc := quote.NewGaslessService(logger.L(), quoteSvc, builder, gasSource, signer, sim)
	orderSvc := limitorder.NewService(logger.L(), registry)

	// --- Eventing (optional NATS) ---
	var nc *nats.Conn
	var pub *events.Publisher
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = events.New(logger.L(), nc, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; quote events disabled")
	}

	// --- Fiber HTTP server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	handler := api.NewSwapHandler(logger.L(), quoteSvc, gaslessSvc, orderSvc, pub)
	api.RegisterRoutes(app, nc, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(cfg.Addr()); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[swap-aggregator] running",
		"env", cfg.Env,
		"nats", cfg.NATSURL != "",
		"redis", cfg.RedisAddr != "")

	<-ctx.Done()
	logg.Info("shutting down [swap-aggregator]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logg.Warnw("redis.close_failed", "error", err)
		}
	}
}

// loadSigner resolves the relayer key from AWS Secrets Manager when a secret
// name is configured, otherwise from the environment.
func loadSigner(ctx context.Context, cfg *config.Config) (*relayer.Signer, error) {
	if cfg.RelayerKeySecret != "" {
		provider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		cached := secrets.NewCachedProvider(provider, cfg.CacheTTL)
		return relayer.NewSignerFromSecrets(ctx, cached, cfg.RelayerKeySecret)
	}
	return relayer.NewSigner(cfg.RelayerKeyHex)
}
