package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/api/router"
	"github.com/sanosuguru/student-housing-reservation/internal/application"
	"github.com/sanosuguru/student-housing-reservation/internal/config"
	"github.com/sanosuguru/student-housing-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/student-housing-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/student-housing-reservation/internal/infrastructure/remote"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/auth"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/metrics"
)

func main() {
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Log.Env, cfg.Log.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("JWT_SECRET が設定されていません", zap.Error(err))
	}

	// DB接続（起動直後はDBが未起動の場合があるため再試行する）
	db, err := postgres.ConnectWithRetry(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("データベースに接続できません", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	m := metrics.New()

	// Redisは任意。接続できない場合は分散ロックなしで起動する
	var lockManager redisinfra.LockManagerInterface
	if cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(&redisinfra.Config{
			Host: cfg.Redis.Host, Port: cfg.Redis.Port,
			Password: cfg.Redis.Password, DB: cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redisに接続できないため分散ロックを無効にします", zap.Error(err))
		} else {
			defer rc.Close()
			lockManager = redisinfra.NewLockManager(rc, m)
		}
	}

	remoteCfg := remote.DefaultConfig(cfg.Remote.AccommodationURL)
	remoteCfg.Timeout = cfg.Remote.Timeout
	remoteCfg.BreakerMaxFailures = uint32(cfg.Remote.BreakerMaxFailures)
	remoteCfg.BreakerOpenTimeout = cfg.Remote.BreakerOpenTimeout
	accommodations := remote.NewClient(remoteCfg, m)

	reservationService := application.NewReservationService(
		postgres.NewTxManager(db),
		postgres.NewReservationRepository(db),
		accommodations,
		lockManager,
		m,
		application.Options{
			PaymentRequiresConfirmed: cfg.Booking.PaymentRequiresConfirmed,
			DefaultPageSize:          cfg.Booking.DefaultPageSize,
			MaxPageSize:              cfg.Booking.MaxPageSize,
			LockTTL:                  cfg.Redis.LockTTL,
		},
	)

	e := router.New(router.Deps{
		Reservations:   reservationService,
		Tokens:         tokens,
		DB:             db,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		MetricsAuth:    cfg.Metrics,
		AllowOrigins:   cfg.Server.AllowOrigins,
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// Graceful shutdown
	go func() {
		logger.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("accommodation_service", cfg.Remote.AccommodationURL),
			zap.Bool("distributed_lock", lockManager != nil),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	<-ctx.Done()
	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
