package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petinel/payments-service/internal/application/services"
	"github.com/petinel/payments-service/internal/config"
	"github.com/petinel/payments-service/internal/infrastructure/gateway"
	"github.com/petinel/payments-service/internal/infrastructure/notify"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
	"github.com/petinel/payments-service/internal/infrastructure/pixdirect"
	"github.com/petinel/payments-service/internal/interfaces/rest/handlers"
	"github.com/petinel/payments-service/internal/watch"
	"github.com/petinel/payments-service/internal/worker"
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

	orderRepo := postgres.NewOrderRepository(db)
	attemptRepo := postgres.NewAttemptRepository(db)

	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)
	retryGatewayClient := gateway.NewRetryGatewayClient(gatewayClient, cfg.Retry)

	notifier := notify.NewRedisNotifier(cfg.Redis, logger)
	defer notifier.Close()

	hub := watch.NewHub()
	issuer := pixdirect.NewIssuer()

	reconcileService := services.NewReconcileService(orderRepo, attemptRepo, db, hub, notifier, logger)
	checkoutService := services.NewCheckoutService(orderRepo, attemptRepo, retryGatewayClient, issuer, reconcileService, db, logger)
	statusService := services.NewStatusService(orderRepo, attemptRepo, reconcileService, logger)

	h := handlers.NewHandlers(
		checkoutService,
		reconcileService,
		statusService,
		hub,
		cfg.Gateway.WebhookToken,
		logger,
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h.Routes(cfg.Auth.JWTSecret, cfg.Server.ReadTimeout, logger),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No write deadline: the event stream endpoint holds connections open
		// until the attempt goes terminal.
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expirationWorker := worker.NewExpirationWorker(
		attemptRepo,
		reconcileService,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expirationWorker.Start(workerCtx)

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
