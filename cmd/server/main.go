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

	_ "github.com/joho/godotenv/autoload"

	"github.com/Cerjho/canteen-orders/internal/application/services"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/notify"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/paymongo"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/persistence/postgres"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/school"
	"github.com/Cerjho/canteen-orders/internal/interfaces/rest"
	"github.com/Cerjho/canteen-orders/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := postgres.NewOrderRepository(db.Pool)
	inventoryRepo := postgres.NewInventoryRepository(db.Pool)
	walletRepo := postgres.NewWalletRepository(db.Pool)
	txnRepo := postgres.NewTransactionRepository(db.Pool)
	topupRepo := postgres.NewTopupRepository(db.Pool)

	gateway := paymongo.NewRetryClient(paymongo.NewClient(cfg.Gateway), cfg.Retry)

	calendar, err := school.NewCalendar(cfg.Calendar)
	if err != nil {
		logger.Error("calendar setup failed", "error", err)
		os.Exit(1)
	}
	directory := school.NewDirectory(db.Pool)
	notifier := notify.NewLogNotifier(logger)

	checkoutSvc := services.NewCheckoutService(
		orderRepo, inventoryRepo, walletRepo, txnRepo,
		gateway, calendar, directory, notifier,
		cfg.Checkout, logger,
	)
	reconcileSvc := services.NewReconcileService(
		orderRepo, inventoryRepo, walletRepo, txnRepo, topupRepo,
		gateway, notifier, cfg.Checkout, logger,
	)
	transitionSvc := services.NewTransitionService(orderRepo, inventoryRepo, txnRepo, notifier, logger)
	refundSvc := services.NewRefundService(orderRepo, inventoryRepo, walletRepo, txnRepo, gateway, notifier, logger)
	topupSvc := services.NewTopupService(topupRepo, gateway, cfg.Checkout, logger)

	reaper := worker.NewReaper(orderRepo, inventoryRepo, txnRepo, topupRepo, gateway, notifier, cfg.Reaper, logger)
	go reaper.Start(ctx)

	router := rest.NewRouter(
		cfg,
		rest.NewOrderHandler(checkoutSvc, reconcileSvc, logger),
		rest.NewStaffHandler(transitionSvc, refundSvc, logger),
		rest.NewWalletHandler(topupSvc, reconcileSvc, walletRepo, logger),
		rest.NewWebhookHandler(reconcileSvc, cfg.Gateway, logger),
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Primary.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
