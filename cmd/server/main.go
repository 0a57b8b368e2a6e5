package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	rediscache "github.com/ogurasousui/hr-api/internal/adapters/cache/redis"
	"github.com/ogurasousui/hr-api/internal/adapters/http/handler"
	"github.com/ogurasousui/hr-api/internal/adapters/http/router"
	"github.com/ogurasousui/hr-api/internal/adapters/repository/postgres"
	"github.com/ogurasousui/hr-api/internal/core/employee"
	"github.com/ogurasousui/hr-api/internal/platform/config"
	pg "github.com/ogurasousui/hr-api/internal/platform/db/postgres"
	"github.com/ogurasousui/hr-api/internal/platform/logger"
	"github.com/ogurasousui/hr-api/internal/platform/metrics"
	"github.com/ogurasousui/hr-api/internal/platform/server"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env が無い環境 (コンテナ等) では環境変数のみを使います。
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync(zl)

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
		logger.Sync(zl)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database, zl)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool,
		pg.WithIsoLevel(pgx.ReadCommitted),
		pg.WithTransactionLogger(zl),
	)

	opts := []employee.Option{employee.WithLogger(zl)}
	if cfg.Redis.Enabled() {
		client, err := rediscache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, employee.WithCache(rediscache.NewViewCache(client, cfg.Redis.TTL)))
		zl.Info("employee view cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	svc := employee.NewService(
		postgres.NewEmployeeRepository(dbPool),
		postgres.NewVersionRepository(dbPool),
		nil,
		txManager,
		opts...,
	)

	var demo handler.DemoSource
	if cfg.Server.StaticPayloadPath != "" {
		demo = handler.FileDemoSource{Path: cfg.Server.StaticPayloadPath}
	}

	routerCfg := router.Config{
		Logger:         zl,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         dbPool.Ping,
		Handlers:       []router.Registrar{handler.NewEmployeeHandler(svc, demo, zl)},
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = metrics.NewHTTPMetrics()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srv := server.New(cfg.Server.ListenAddr, router.New(routerCfg), server.Options{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, zl)

	return srv.Run(ctx)
}
