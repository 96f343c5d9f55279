package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-access/internal/api/http"
	"github.com/spec-kit/crm-access/internal/api/http/handlers"
	"github.com/spec-kit/crm-access/internal/auth"
	"github.com/spec-kit/crm-access/internal/config"
	"github.com/spec-kit/crm-access/internal/events"
	"github.com/spec-kit/crm-access/internal/observability"
	"github.com/spec-kit/crm-access/internal/persistence"
	"github.com/spec-kit/crm-access/internal/repository"
	"github.com/spec-kit/crm-access/internal/service"
	"github.com/spec-kit/crm-access/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pool)
	staffRoleRepo := repository.NewStaffRoleRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	accounts := repository.NewAccountStore(pool)
	revocations := repository.NewRevocationRepository(redis.Client)

	tokens, err := auth.NewTokenManager(auth.TokenOptions{
		Secret:          cfg.Auth.JWTSecret,
		PreviousSecrets: cfg.Auth.PreviousJWTSecrets,
		AccessTTL:       cfg.Auth.AccessTokenTTL(),
		RefreshTTL:      cfg.Auth.RefreshTokenTTL(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	gate := auth.NewGate(auth.GateOptions{
		Tokens:      tokens,
		Routes:      auth.DefaultRouteTable(),
		Revocations: revocations,
		Roles:       staffRoleRepo,
		CookieName:  cfg.Auth.AccessCookieName,
		Logger:      logger.Named("gate"),
		Metrics:     metrics,
	})

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, cfg.Audit))

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    userRepo,
		Roles:       staffRoleRepo,
		Tokens:      tokens,
		Revocations: revocations,
		Dispatcher:  dispatcher,
	})
	leadService := service.NewLeadService(leadRepo, gate.Ownership(), dispatcher)
	staffRoleService := service.NewStaffRoleService(userRepo, staffRoleRepo, accounts, dispatcher, cfg.Auth.BcryptCost)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, CaseSensitive: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Auth:        handlers.NewAuthHandler(authService, cfg.Auth),
		Leads:       handlers.NewLeadsHandler(leadService, gate),
		StaffRoles:  handlers.NewStaffRolesHandler(staffRoleService),
		Gate:        gate,
		LeadFetcher: leadService.Fetch,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
