// Package app provides the top-level application lifecycle for the
// opiniontrade venue. It wires together all dependencies (stores, caches,
// blob storage, services, notifications), warms the in-memory book registry
// from persisted markets, and runs the HTTP/WebSocket server until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/opiniontrade/internal/book"
	"github.com/alanyoungcy/opiniontrade/internal/config"
	"github.com/alanyoungcy/opiniontrade/internal/domain"
	"github.com/alanyoungcy/opiniontrade/internal/server"
	"github.com/alanyoungcy/opiniontrade/internal/server/handler"
	"github.com/alanyoungcy/opiniontrade/internal/server/ws"
	"github.com/alanyoungcy/opiniontrade/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, rebuilds the book
// registry, starts the server and WebSocket hub, and blocks until the context
// is cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting venue",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	registry := book.NewRegistry()
	if err := a.warmRegistry(ctx, registry, deps.MarketStore); err != nil {
		return fmt.Errorf("app: warm registry: %w", err)
	}

	limits := domain.OrderLimits{
		MinPrice:    a.cfg.Market.MinPrice,
		MaxPrice:    a.cfg.Market.MaxPrice,
		MinQuantity: a.cfg.Market.MinQuantity,
		MaxQuantity: a.cfg.Market.MaxQuantity,
	}

	orderSvc := service.NewOrderService(
		deps.MarketStore, deps.TradeStore, deps.LedgerStore,
		registry, limits, deps.BookCache, deps.SignalBus, a.logger,
	)
	marketSvc := service.NewMarketService(
		deps.MarketStore, deps.TradeStore, deps.LedgerStore,
		registry, deps.MarketCache, deps.SignalBus, deps.Notifier, a.logger,
	)
	settlementSvc := service.NewSettlementService(
		deps.MarketStore, deps.TradeStore, deps.LedgerStore,
		registry, deps.MarketCache, deps.SignalBus,
		deps.Archiver, deps.Notifier, a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(registry, a.logger),
			Markets:  handler.NewMarketHandler(marketSvc, settlementSvc, a.logger),
			Orders:   handler.NewOrderHandler(orderSvc, a.logger),
			Trades:   handler.NewTradeHandler(marketSvc, a.logger),
			Balances: handler.NewBalanceHandler(marketSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// warmRegistry registers an order book for every open market so placement can
// resume after a restart. Books start empty: resting orders do not survive a
// process restart, only balances and trades do.
func (a *App) warmRegistry(ctx context.Context, registry *book.Registry, markets domain.MarketStore) error {
	open, err := markets.ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, m := range open {
		registry.Insert(m.ID)
	}
	a.logger.InfoContext(ctx, "book registry warmed",
		slog.Int("open_markets", len(open)),
	)
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down venue")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
