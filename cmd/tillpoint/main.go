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

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tillpoint/tillpoint/internal/app"
	"github.com/tillpoint/tillpoint/internal/audit"
	"github.com/tillpoint/tillpoint/internal/auth"
	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/customers"
	"github.com/tillpoint/tillpoint/internal/ledger"
	"github.com/tillpoint/tillpoint/internal/platform/cache"
	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/internal/printing"
	"github.com/tillpoint/tillpoint/internal/purchasing"
	"github.com/tillpoint/tillpoint/internal/sales"
	"github.com/tillpoint/tillpoint/internal/settings"
	"github.com/tillpoint/tillpoint/internal/shared"
	"github.com/tillpoint/tillpoint/internal/stocktake"
	"github.com/tillpoint/tillpoint/internal/suppliers"
	"github.com/tillpoint/tillpoint/internal/users"
	"github.com/tillpoint/tillpoint/jobs"
)

func main() {
	_ = godotenv.Load()

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
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	notifier := jobs.NewNotifier(jobsClient, logger)

	settingsService := settings.NewService(settings.NewRepository(pool), redisClient, logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool))
	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger, notifier, logger)
	salesService := sales.NewService(sales.NewRepository(pool), auditLogger, notifier, settingsService, logger)
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), auditLogger, logger)
	stockTakeService := stocktake.NewService(stocktake.NewRepository(pool), auditLogger, notifier, logger)
	customersService := customers.NewService(customers.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	usersService := users.NewService(users.NewRepository(pool))

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokenStore)

	storeCfg, err := settingsService.Resolve(ctx)
	if err != nil {
		logger.Warn("resolve settings", slog.Any("error", err))
		storeCfg = settings.Default()
	}
	printer := printing.NewTextPrinter(storeCfg.StoreName, storeCfg.Currency)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthService:       authService,
		AuthHandler:       auth.NewHandler(logger, authService, validate),
		CatalogHandler:    catalog.NewHandler(logger, catalogService, validate),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService, validate),
		SalesHandler:      sales.NewHandler(logger, salesService, printer, validate),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService, validate),
		StockTakeHandler:  stocktake.NewHandler(logger, stockTakeService, validate),
		CustomersHandler:  customers.NewHandler(logger, customersService, validate),
		SuppliersHandler:  suppliers.NewHandler(logger, suppliersService, validate),
		SettingsHandler:   settings.NewHandler(logger, settingsService, validate),
		UsersHandler:      users.NewHandler(logger, usersService, validate),
		AuditHandler:      audit.NewHandler(logger, audit.NewReader(pool)),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
