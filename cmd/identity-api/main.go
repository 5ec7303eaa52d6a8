package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/lms-identity-api/internal/handler"
	"github.com/noah-isme/lms-identity-api/internal/middleware"
	"github.com/noah-isme/lms-identity-api/internal/repository"
	"github.com/noah-isme/lms-identity-api/internal/router"
	"github.com/noah-isme/lms-identity-api/internal/security"
	"github.com/noah-isme/lms-identity-api/internal/service"
	"github.com/noah-isme/lms-identity-api/internal/tenant"
	"github.com/noah-isme/lms-identity-api/pkg/cache"
	"github.com/noah-isme/lms-identity-api/pkg/config"
	"github.com/noah-isme/lms-identity-api/pkg/database"
	"github.com/noah-isme/lms-identity-api/pkg/logger"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title LMS Identity API
// @version 1.0.0
// @description Tenant-aware identity and access core
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	control, err := database.Open(ctx, cfg.ControlDatabase, cfg.ControlDatabase.Name)
	if err != nil {
		logr.Fatal("failed to connect control database", zap.Error(err))
	}

	tenantRepo := repository.NewTenantRepository(control)
	userRepo := repository.NewUserRepository()
	tokenRepo := repository.NewTokenRepository()

	openTenant := func(ctx context.Context, dbName string) (*sqlx.DB, error) {
		openCtx, cancel := context.WithTimeout(ctx, cfg.TenantPool.ConnectTimeout)
		defer cancel()
		tenantCfg := cfg.ControlDatabase
		tenantCfg.MaxOpenConns = cfg.TenantPool.MaxOpenConns
		tenantCfg.MaxIdleConns = cfg.TenantPool.MaxIdleConns
		return database.Open(openCtx, tenantCfg, dbName)
	}
	tenantRouter := tenant.NewRouter(control, tenantRepo, openTenant, logr)
	defer tenantRouter.Close() //nolint:errcheck

	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService(tenantRouter.PoolCount)
	validate := validator.New()
	issuer := security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration, nil)
	hasher := security.NewPasswordHasher(cfg.Auth.BcryptCost)

	authSvc := service.NewAuthService(userRepo, tokenRepo, issuer, hasher, nil, validate, logr, metrics, service.AuthServiceConfig{
		RefreshTokenTTL:      cfg.JWT.RefreshExpiration,
		ResetTokenTTL:        cfg.Auth.ResetTokenTTL,
		VerifyTokenTTL:       cfg.Auth.VerifyTokenTTL,
		AllowUnverifiedLogin: cfg.Auth.AllowUnverifiedLogin,
	})
	userSvc := service.NewUserService(userRepo, tokenRepo, validate, logr)
	tenantSvc := service.NewTenantService(tenantRepo, validate, logr)

	engine := router.New(router.Deps{
		Config:       cfg,
		Logger:       logr,
		Router:       tenantRouter,
		Redis:        rdb,
		Metrics:      metrics,
		Auth:         handler.NewAuthHandler(authSvc, logr),
		Users:        handler.NewUserHandler(userSvc, logr),
		Tenants:      handler.NewTenantHandler(tenantSvc, logr),
		Authenticate: middleware.Authenticate(issuer),
	})

	var pruner *service.PruneService
	if cfg.Pruner.Enabled {
		pruner = service.NewPruneService(tenantRepo, tokenRepo, tenantRouter, metrics, logr, cfg.Pruner.Interval)
		pruner.Start(ctx)
		defer pruner.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
