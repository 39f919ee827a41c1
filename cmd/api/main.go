package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/ssoworks/sso-service/internal/api/http"
	"github.com/ssoworks/sso-service/internal/api/http/handlers"
	"github.com/ssoworks/sso-service/internal/auth"
	"github.com/ssoworks/sso-service/internal/config"
	"github.com/ssoworks/sso-service/internal/events"
	"github.com/ssoworks/sso-service/internal/observability"
	"github.com/ssoworks/sso-service/internal/persistence"
	"github.com/ssoworks/sso-service/internal/repository"
	"github.com/ssoworks/sso-service/internal/service"
	"github.com/ssoworks/sso-service/internal/worker"
)

const memoryCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dependencies, closeStore, err := openTokenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open token store", zap.String("store", cfg.Tokens.Store), zap.Error(err))
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	tokenService := service.NewTokenService(cfg.Tokens, service.TokenDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	logoutHandler := auth.NewLogoutHandler(auth.LogoutConfig{
		ClearAuthentication: true,
		InvalidateSession:   true,
		CookieName:          cfg.Session.CookieName,
		CookiePath:          cfg.Session.CookiePath,
		CookieDomain:        cfg.Session.CookieDomain,
		Secure:              cfg.Session.CookieSecure,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		SSO:            handlers.NewSSOHandler(tokenService, logoutHandler),
		AuthMiddleware: auth.NewAuthMiddleware(tokenService, cfg.Session.CookieName),
		InternalTokens: auth.NewTokenManager(cfg.Internal.JWTSecret, cfg.Internal.Audience, 0),
		Metrics:        metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Tokens.Store))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return worker.NewExpiryWorker(tokenService, sweepInterval(cfg.Tokens), logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}

// sweepInterval returns the expiry sweep period. The memory store has nothing else
// reclaiming elapsed records, so it always gets a sweep.
func sweepInterval(cfg config.TokenConfig) time.Duration {
	interval := cfg.JanitorInterval()
	if interval <= 0 && cfg.Store == config.StoreMemory {
		return memoryCleanupInterval
	}
	return interval
}

// openTokenStore connects the configured backend and returns the dependencies the
// readiness probe should check.
func openTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.TokenStore, map[string]handlers.Pinger, func(), error) {
	switch cfg.Tokens.Store {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				pg.Close()
				return nil, nil, nil, err
			}
		}
		return repository.NewPostgresTokenStore(pg.PoolHandle()), map[string]handlers.Pinger{"postgres": pg}, pg.Close, nil
	case config.StoreRedis:
		rdb := persistence.NewRedis(cfg.Redis, logger)
		return repository.NewRedisTokenStore(rdb.Client), map[string]handlers.Pinger{"redis": rdb}, rdb.Close, nil
	case config.StoreMemory:
		return repository.NewMemoryTokenStore(), map[string]handlers.Pinger{}, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported token store %q", cfg.Tokens.Store)
	}
}
