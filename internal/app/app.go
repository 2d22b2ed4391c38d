// Package app assembles the router stack from configuration. Both the HTTP
// server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/web3-frozen/tron-source-router/internal/backend/explorer"
	"github.com/web3-frozen/tron-source-router/internal/backend/gateway"
	"github.com/web3-frozen/tron-source-router/internal/backend/node"
	"github.com/web3-frozen/tron-source-router/internal/chainwatch"
	"github.com/web3-frozen/tron-source-router/internal/config"
	"github.com/web3-frozen/tron-source-router/internal/dedup"
	"github.com/web3-frozen/tron-source-router/internal/estimate"
	"github.com/web3-frozen/tron-source-router/internal/keyring"
	"github.com/web3-frozen/tron-source-router/internal/router"
	"github.com/web3-frozen/tron-source-router/internal/store"
	"github.com/web3-frozen/tron-source-router/internal/tools"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// Options switch off the optional side stores, e.g. for one-shot CLI runs.
type Options struct {
	SkipDatabase bool
	SkipRedis    bool
}

type App struct {
	Availability *router.Availability
	Router       *router.Router
	Service      *tools.Service
	Registry     *tools.Registry
	Watcher      *chainwatch.Watcher
	// Store is nil when no database is configured.
	Store *store.Store

	closers []func()
}

// Build connects every configured backend. Only a broken heuristics file or
// signing key is fatal; unreachable optional stores are logged and skipped.
func Build(ctx context.Context, cfg config.Config, opts Options, logger *slog.Logger) (*App, error) {
	a := &App{}

	heur, err := estimate.Load(cfg.HeuristicsFile)
	if err != nil {
		return nil, fmt.Errorf("load heuristics: %w", err)
	}

	var signer *tron.Signer
	if cfg.PrivateKey != "" {
		if signer, err = tron.NewSigner(cfg.PrivateKey); err != nil {
			return nil, err
		}
		logger.Info("signing key loaded", "address", tron.Base58(signer.Address()))
	}

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" && !opts.SkipRedis {
		c, err := dedup.Dial(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, broadcast guard and shared key rotation disabled", "error", err)
		} else {
			rdb = c
			a.closers = append(a.closers, func() { c.Close() })
			logger.Info("redis connected")
		}
	}

	var guard *dedup.Guard
	if rdb != nil {
		guard = dedup.New(rdb, dedup.DefaultTTL)
	}

	backends := tools.Backends{
		Gateway:  gateway.New(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.BackendTimeout),
		Explorer: explorer.New(cfg.ExplorerURL, keyring.New(cfg.ExplorerKeys, rdb), cfg.BackendTimeout),
	}

	var probe router.ProbeFunc
	if cfg.NodeGRPC != "" {
		grpcClient, err := node.Dial(cfg.NodeGRPC, cfg.NodeAPIKey, cfg.BackendTimeout)
		if err != nil {
			logger.Warn("primary node unavailable, routing to gateway and explorer only", "addr", cfg.NodeGRPC, "error", err)
		} else {
			a.closers = append(a.closers, grpcClient.Stop)
			backends.Node = node.NewAdapter(grpcClient)
			probe = func(ctx context.Context) error {
				_, err := backends.Node.NowBlock(ctx)
				return err
			}
		}
	}

	a.Availability = router.NewAvailability(probe,
		router.WithProbeTimeout(cfg.ProbeTimeout),
		router.WithCooldown(cfg.PrimaryCooldown),
		router.WithLogger(logger),
	)
	a.Router = router.New(a.Availability,
		router.WithAttemptTimeout(cfg.BackendTimeout),
		router.WithRouterLogger(logger),
	)

	a.Service = tools.NewService(a.Router, backends,
		tools.WithSigner(signer),
		tools.WithGuard(guard),
		tools.WithHeuristics(heur),
		tools.WithDefaultFeeLimit(cfg.FeeLimitSun),
		tools.WithPrices(tools.PriceFunc(func(fallback int64) int64 {
			return a.Watcher.EnergyPrice(fallback)
		})),
		tools.WithLogger(logger),
	)
	a.Watcher = chainwatch.New(a.Service, cfg.WatchInterval, logger)

	var journal tools.Journal
	if cfg.DatabaseURL != "" && !opts.SkipDatabase {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.New(dbCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Warn("database unavailable, call journal disabled", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			db.Close()
			logger.Warn("migrations failed, call journal disabled", "error", err)
		} else {
			a.Store = db
			journal = db
			a.closers = append(a.closers, db.Close)
			logger.Info("database connected and migrated")
		}
	}
	a.Registry = tools.NewRegistry(a.Service, journal)

	return a, nil
}

// Close releases every connection Build opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
