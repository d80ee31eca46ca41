package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pantryplan/pantryplan/internal/app"
	"github.com/pantryplan/pantryplan/internal/auth"
	"github.com/pantryplan/pantryplan/internal/observability"
	"github.com/pantryplan/pantryplan/internal/platform/db"
	"github.com/pantryplan/pantryplan/internal/rbac"
	"github.com/pantryplan/pantryplan/internal/recipes"
	"github.com/pantryplan/pantryplan/internal/shared"
	"github.com/pantryplan/pantryplan/internal/tenants"
	"github.com/pantryplan/pantryplan/internal/users"
	"github.com/pantryplan/pantryplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pantryplan_session", cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	guard := rbac.Guard{Resolver: rbacService, Logger: logger, Metrics: metrics}

	userService := users.NewService(users.NewRepository(pool))
	authService := auth.NewService(auth.NewRepository(pool))
	tenantService := tenants.NewService(tenants.NewRepository(pool))
	recipeService := recipes.NewService(recipes.NewRepository(pool))

	if cfg.BootstrapRBAC {
		bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := rbacService.InitializeSystemRoles(bootCtx); err != nil {
			cancel()
			logger.Error("initialize system roles", slog.Any("error", err))
			os.Exit(1)
		}
		cancel()
		logger.Info("system roles ready")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		Metrics:        metrics,
		AuthHandler:    auth.NewHandler(logger, authService, userService, sessionManager),
		RBACHandler:    rbac.NewHandler(logger, rbacService, guard, jobClient),
		TenantHandler:  tenants.NewHandler(logger, tenantService, guard),
		RecipeHandler:  recipes.NewHandler(logger, recipeService, guard),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
