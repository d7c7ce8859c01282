package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumapix/payments-service/internal/application/services"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/currency"
	"github.com/lumapix/payments-service/internal/infrastructure/lease"
	"github.com/lumapix/payments-service/internal/infrastructure/persistence/postgres"
	"github.com/lumapix/payments-service/internal/infrastructure/provider"
	"github.com/lumapix/payments-service/internal/infrastructure/rates"
	"github.com/lumapix/payments-service/internal/interfaces/rest/handlers"
	"github.com/lumapix/payments-service/internal/interfaces/rest/middleware"
	"github.com/lumapix/payments-service/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	payoutRepo := postgres.NewPayoutRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)
	coordinator := postgres.NewTransactionCoordinator(db, logger)

	rateSource, err := buildRateSource(cfg)
	if err != nil {
		logger.Error("failed to build rate source", "error", err)
		os.Exit(1)
	}
	converter := currency.NewConverter(rateSource, cfg.Currency.Base, cfg.Currency.RatesTTL, cfg.Currency.CountryDefaults)

	registry := provider.NewRegistry(cfg.Gateways)
	selector := services.NewGatewaySelector(cfg.Gateways.Rules, logger)
	batchLease := lease.NewRedisLease(redisClient, logger)

	checkoutService := services.NewCheckoutService(
		idempotencyRepo, transactionRepo, converter, selector, registry, cfg.Pricing, logger)
	settlementService := services.NewSettlementService(coordinator, registry, cfg.Pricing, logger)
	payoutService := services.NewPayoutService(
		coordinator, walletRepo, payoutRepo, settingsRepo, batchLease, cfg.Payout, logger)
	verifyService := services.NewVerifyService(transactionRepo, registry, logger)

	h := handlers.NewHandlers(
		checkoutService,
		settlementService,
		payoutService,
		verifyService,
		cfg.Auth,
		logger,
	)

	mux := http.NewServeMux()
	h.Register(mux)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	payoutWorker := worker.NewPayoutWorker(payoutService, cfg.Payout.WorkerInterval, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go payoutWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// buildRateSource prefers the configured rate API and falls back to the
// static table from configuration.
func buildRateSource(cfg *config.Config) (currency.RateSource, error) {
	if cfg.Currency.RatesURL != "" {
		return rates.NewHTTPSource(cfg.Currency.RatesURL, cfg.Currency.Base, cfg.Gateways.ConnTimeout), nil
	}
	return currency.NewStaticSource(cfg.Currency.Base, cfg.Currency.StaticRates)
}
