package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/Behnamfe76/auth-service/internal/api/http"
	"github.com/Behnamfe76/auth-service/internal/api/http/handlers"
	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/config"
	"github.com/Behnamfe76/auth-service/internal/events"
	"github.com/Behnamfe76/auth-service/internal/limiter"
	"github.com/Behnamfe76/auth-service/internal/observability"
	"github.com/Behnamfe76/auth-service/internal/persistence"
	"github.com/Behnamfe76/auth-service/internal/repository"
	"github.com/Behnamfe76/auth-service/internal/service"
	"github.com/Behnamfe76/auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys, err := auth.LoadKeyMaterial(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to load key material", zap.Error(err))
	}
	if _, err := keys.SigningKey(); err != nil {
		logger.Error("signing key unavailable; token issuance will fail", zap.Error(err))
	}
	if _, err := keys.RefreshSecret(); err != nil {
		logger.Error("refresh token secret unavailable; token issuance will fail", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	refreshRepo := repository.NewRefreshTokenRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)

	tokenManager := auth.NewTokenManager(keys, auth.WithIssuer(cfg.Auth.Issuer))
	authService := service.NewAuthService(service.AuthDependencies{
		Users:  service.NewUserService(userRepo, cfg.Auth.BcryptCost),
		Tokens: service.NewTokenService(tokenManager, refreshRepo),
		Throttle: limiter.NewLoginLimiter(redis.Client, limiter.Config{
			MaxAttempts: cfg.Auth.LoginMaxAttempts,
			Cooldown:    cfg.Auth.LoginCooldown,
			ThrottleIP:  cfg.Auth.LoginThrottleByIP,
		}),
		Events: dispatcher,
		Logger: logger,
	})

	jwksClient := auth.NewJWKSClient(auth.JWKSConfig{
		URI:               cfg.Auth.JWKSURI,
		FetchTimeout:      cfg.Auth.JWKSFetchTimeout,
		RequestsPerMinute: cfg.Auth.JWKSRequestsPerMinute,
	}, &http.Client{}, logger.Named("jwks"))
	verifier := auth.NewVerifier(jwksClient, auth.WithIssuer(cfg.Auth.Issuer))
	authMiddleware := auth.NewAuthMiddleware(verifier, cfg.Auth.AccessTokenCookieName, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, keys),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieConfig{
			Domain:      cfg.Auth.CookieDomain,
			Secure:      cfg.Auth.CookieSecure,
			AccessName:  cfg.Auth.AccessTokenCookieName,
			RefreshName: cfg.Auth.RefreshTokenCookieName,
		}),
		JWKS:           handlers.NewJWKSHandler(keys),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
