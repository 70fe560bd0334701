package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ghost-db/flowpay/internal/cache/redis"
	"github.com/ghost-db/flowpay/internal/config"
	"github.com/ghost-db/flowpay/internal/crypto"
	"github.com/ghost-db/flowpay/internal/domain"
	"github.com/ghost-db/flowpay/internal/payment"
	"github.com/ghost-db/flowpay/internal/polymarket"
	"github.com/ghost-db/flowpay/internal/server"
	"github.com/ghost-db/flowpay/internal/server/handler"
	"github.com/ghost-db/flowpay/internal/store/postgres"
	"github.com/ghost-db/flowpay/internal/trading"
)

// Dependencies bundles everything the HTTP server needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Handlers    server.Handlers
	Gate        *payment.Gate
	RateLimiter domain.RateLimiter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Wallet and signer ---
	privateKey, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
	}

	signer, err := crypto.NewSigner(privateKey, cfg.Polymarket.ChainID, cfg.Polymarket.ExchangeAddress)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	// --- Trading facade ---
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, cfg.Polymarket.RequestTimeout.Duration, signer)
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, cfg.Polymarket.RequestTimeout.Duration)
	facade := trading.New(clob, gamma, signer, cfg.Polymarket.SignatureType, logger)

	// --- Redis (optional) ---
	var guard domain.ReplayGuard
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		guard = redis.NewReplayGuard(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	} else {
		// Single-process fallback; replayed nonces are only caught within
		// this instance.
		guard = payment.NewMemoryReplayGuard()
	}

	// --- PostgreSQL settlement ledger (optional) ---
	var ledger domain.SettlementStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		ledger = postgres.NewSettlementStore(pgClient.Pool())
	}

	// --- Payment gate ---
	facilitator := payment.NewFacilitatorClient(cfg.Payment.FacilitatorURL, cfg.Payment.RequestTimeout.Duration)
	deps.Gate = payment.NewGate(
		payment.NewPriceTable(cfg.Payment.Prices),
		facilitator,
		guard,
		ledger,
		payment.GateConfig{
			PayTo:             cfg.Payment.PayTo,
			Network:           cfg.Payment.Network,
			Asset:             cfg.Payment.Asset,
			AssetName:         cfg.Payment.AssetName,
			AssetVersion:      cfg.Payment.AssetVersion,
			Description:       cfg.Payment.Description,
			MaxTimeoutSeconds: cfg.Payment.MaxTimeoutSeconds,
			ReplayTTL:         cfg.Payment.ReplayTTL.Duration,
		},
		logger,
	)

	// --- HTTP handlers ---
	deps.Handlers = server.Handlers{
		Meta:     handler.NewMetaHandler(cfg.Payment.Network, cfg.Payment.Asset, cfg.Payment.Prices),
		Health:   handler.NewHealthHandler(cfg.Polymarket.ClobHost),
		Markets:  handler.NewMarketHandler(facade, logger),
		Balances: handler.NewBalanceHandler(facade, logger),
		Orders:   handler.NewOrderHandler(facade, logger),
		Trades:   handler.NewTradeHandler(facade, logger),
	}
	if ledger != nil {
		deps.Handlers.Settlements = handler.NewSettlementHandler(ledger, logger)
	}

	return deps, cleanup, nil
}
