package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/halver/shopcore/config"
	"github.com/halver/shopcore/internal/auth"
	"github.com/halver/shopcore/internal/gateway"
	handler "github.com/halver/shopcore/internal/handler/http"
	"github.com/halver/shopcore/internal/mailer"
	"github.com/halver/shopcore/internal/middleware"
	"github.com/halver/shopcore/internal/notifier"
	"github.com/halver/shopcore/internal/repository"
	"github.com/halver/shopcore/internal/repository/postgres"
	"github.com/halver/shopcore/internal/service"
	"github.com/halver/shopcore/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAuthTokenKey  = "f53ac685bbceebd75043e6be2e06ee07"
	invoiceRetryInterval = time.Minute
	notifierBufferSize   = 64
	shutdownTimeout      = 10 * time.Second
)

// newLogger creates logger with log level
func newLogger(level string) (*zap.Logger, error) {

	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// create context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	err = db.Migrate()
	if err != nil {
		logger.Fatal("Error migrating database", zap.Error(err))
	}

	tokenKeyHex := cfg.AuthTokenKey
	if tokenKeyHex == "" {
		tokenKeyHex = defaultAuthTokenKey
	}
	tokenKey, err := hex.DecodeString(tokenKeyHex)
	if err != nil {
		logger.Fatal("Error extracting token key", zap.Error(err))
	}
	token := auth.NewAuthToken(tokenKey)

	// change notifier, off the write path
	bus := notifier.NewBus(notifierBufferSize, logger)
	defer bus.Close()

	// dependency injection
	// tenant resolution
	tenantRepo := repository.NewTenantRepository(db)
	tenantService := service.NewTenantService(tenantRepo, logger)

	// invoice dispatch
	orderRepo := repository.NewOrderRepository(db)
	bankRepo := repository.NewBankAccountRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	mail := mailer.NewLogMailer(logger)
	invoiceService := service.NewInvoiceService(invoiceRepo, orderRepo, tenantService, bankRepo, mail, logger)

	// order intake
	orderService := service.NewOrderService(orderRepo, tenantService, bankRepo, invoiceService, bus, logger)
	orderHandler := handler.NewOrderHandler(orderService)

	// payment
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		MerchantID: cfg.GatewayMerchantID,
		Secret:     cfg.GatewaySecret,
		ReturnURL:  cfg.GatewayReturnURL,
		ErrorURL:   cfg.GatewayErrorURL,
	})
	paymentService := service.NewPaymentService(orderRepo, gatewayClient, bus, cfg.FailedPaymentCancels, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(paymentService, logger)

	// operator surface
	operatorRepo := repository.NewOperatorRepository(db)
	authService := service.NewAuthService(operatorRepo, token)
	operatorHandler := handler.NewOperatorHandler(authService, orderService, invoiceService, bus, logger)

	router := chi.NewRouter()

	router.Use(middleware.Logging(logger))

	router.Post("/api/orders", orderHandler.SubmitOrder())
	router.Get("/api/orders/{number}", orderHandler.GetOrder())
	router.Post("/api/payments/{orderID}/initiate", paymentHandler.Initiate())
	router.Get("/api/payments/{paymentID}/status", paymentHandler.Status())
	router.Post("/api/payments/webhook", webhookHandler.Receive())
	router.Post("/api/operator/login", operatorHandler.Login())

	// routes that require operator authentication
	router.Group(func(group chi.Router) {
		group.Use(handler.AuthMiddleware(token))
		group.Patch("/api/operator/orders/{orderID}/status", operatorHandler.UpdateOrderStatus())
		group.Post("/api/operator/orders/{orderID}/hide", operatorHandler.HideOrder())
		group.Post("/api/operator/orders/{orderID}/unhide", operatorHandler.UnhideOrder())
		group.Post("/api/operator/invoices/{invoiceID}/retry", operatorHandler.RetryInvoice())
		group.Get("/api/operator/orders/events", operatorHandler.Events())
	})

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Running server", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		processor := worker.NewInvoiceProcessor(invoiceService, invoiceRetryInterval, logger)
		processor.ProcessInvoices(groupCtx)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("Error running server", zap.Error(err))
	}
}
