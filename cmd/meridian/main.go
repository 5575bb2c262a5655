package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianledger/meridian/internal/accounting/accounts"
	"github.com/meridianledger/meridian/internal/accounting/balances"
	ledgerhttp "github.com/meridianledger/meridian/internal/accounting/http"
	"github.com/meridianledger/meridian/internal/accounting/journals"
	"github.com/meridianledger/meridian/internal/accounting/periods"
	"github.com/meridianledger/meridian/internal/accounting/sequence"
	"github.com/meridianledger/meridian/internal/app"
	"github.com/meridianledger/meridian/internal/platform/cache"
	"github.com/meridianledger/meridian/internal/platform/db"
	"github.com/meridianledger/meridian/internal/shared"
)

func main() {
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLog := shared.NewAuditLogger(pool)

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo)

	allocator := sequence.NewAllocator(cfg.GLSequencePadWidth)

	periodRepo := periods.NewRepository(pool)
	periodService := periods.NewService(periodRepo, auditLog, cfg.GLAllowUnmappedDates)

	balanceCache := balances.NewCache(redisClient, cfg.BalanceCacheTTL)
	balanceRepo := balances.NewRepository(pool)
	balanceService := balances.NewService(balanceRepo, balanceCache)

	journalRepo := journals.NewRepository(pool, allocator)
	journalService := journals.NewService(journalRepo, periodService, auditLog, balanceService)
	journalService.ConfigureRounding(accountService, cfg.GLRoundingAccount, cfg.GLSuspenseAccount)

	handler := ledgerhttp.NewHandler(logger, accountService, journalService, balanceService, periodService)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: handler,
		Pool:          pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
