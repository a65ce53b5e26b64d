package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"

	"github.com/tranvu/mercato/internal"
	"github.com/tranvu/mercato/internal/address"
	"github.com/tranvu/mercato/internal/bootstrap"
	"github.com/tranvu/mercato/internal/cookie"
	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/events"
	"github.com/tranvu/mercato/internal/handler/admin"
	"github.com/tranvu/mercato/internal/handler/storefront"
	"github.com/tranvu/mercato/internal/middleware"
	"github.com/tranvu/mercato/internal/payment"
	"github.com/tranvu/mercato/internal/repository"
	"github.com/tranvu/mercato/internal/router"
	"github.com/tranvu/mercato/internal/routes"
	"github.com/tranvu/mercato/internal/service"
	"github.com/tranvu/mercato/internal/telemetry"
	"github.com/tranvu/mercato/internal/worker"
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// database/sql connection just for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed")

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	repo := repository.NewPostgres(pool)

	// Events: NATS when enabled, otherwise dropped
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		conn, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("NATS connection failed: %w", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, "mercato-server")
		logger.Info("NATS publisher connected", "url", cfg.NATS.URL)
	}

	var metrics *telemetry.BusinessMetrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewBusinessMetrics(cfg.Metrics.Namespace)
	}

	// Services
	stockService, err := service.NewStockService(repo, logger, publisher, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize stock service: %w", err)
	}
	cartService, err := service.NewCartService(repo, stockService, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize cart service: %w", err)
	}
	orderService, err := service.NewOrderService(repo, stockService, logger, publisher, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize order service: %w", err)
	}
	paymentService, err := service.NewPaymentService(repo, logger, publisher, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize payment service: %w", err)
	}

	// Payment gateway
	var gateway payment.Gateway
	if cfg.Wallet.UseMock {
		logger.Warn("Using mock wallet gateway; do not run this in production")
		gateway = payment.NewMockGateway()
	} else {
		gateway, err = payment.NewWalletGateway(payment.WalletConfig{
			BaseURL:    cfg.Wallet.BaseURL,
			MerchantID: cfg.Wallet.MerchantID,
			APIKey:     cfg.Wallet.APIKey,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize wallet gateway: %w", err)
		}
	}

	dispatcher, err := payment.NewDispatcher(gateway, cfg.BaseURL, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize payment dispatcher: %w", err)
	}

	addressSource := address.NewPostgresSource(pool)

	checkoutService, err := service.NewCheckoutService(service.CheckoutDeps{
		Carts:      cartService,
		Orders:     orderService,
		Payments:   paymentService,
		Stock:      stockService,
		Dispatcher: dispatcher,
		Addresses:  addressSource,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize checkout service: %w", err)
	}

	// Session cookies are sealed with a key derived from the configured
	// secret, so any instance sharing the secret can open them.
	sessionKey, err := crypto.DeriveKey(cfg.SessionSecret, "mercato-session-v1")
	if err != nil {
		return fmt.Errorf("failed to derive session key: %w", err)
	}
	encryptor, err := crypto.NewAESEncryptor(sessionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize session encryptor: %w", err)
	}

	if err := bootstrap.EnsureAdmin(ctx, repo, bootstrap.AdminConfig{Email: cfg.AdminEmail}, logger); err != nil {
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}

	cookies := cookie.NewConfig("", cfg.Env == "prod")

	// Route dependencies
	storefrontDeps := routes.StorefrontDeps{
		Session:         storefront.NewSessionHandler(encryptor, cookies, logger),
		Cart:            storefront.NewCartHandler(cartService, logger),
		Checkout:        storefront.NewCheckoutHandler(cartService, checkoutService, orderService, paymentService, logger),
		Orders:          storefront.NewOrderHandler(orderService, logger),
		Address:         storefront.NewAddressHandler(addressSource, logger),
		CheckoutLimiter: middleware.NewRateLimiter(middleware.StrictRateLimiterConfig()),
	}
	defer storefrontDeps.CheckoutLimiter.Stop()

	adminDeps := routes.AdminDeps{
		Orders:   admin.NewOrderHandler(orderService, logger),
		Stock:    admin.NewStockHandler(stockService, logger),
		Payments: admin.NewPaymentHandler(paymentService, logger),
	}

	httpMetrics := middleware.NewMetrics(cfg.Metrics.Namespace)
	systemDeps := routes.SystemDeps{
		Metrics: httpMetrics,
		PingDB:  pool.Ping,
	}

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.ContentSecurityPolicy = ""
		securityConfig.HSTSMaxAge = 0
	}

	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		middleware.WithRequestLogger(logger),
		middleware.WithUser(encryptor),
	)

	routes.RegisterSystemRoutes(r, systemDeps)
	routes.RegisterStorefrontRoutes(r, storefrontDeps)
	routes.RegisterAdminRoutes(r, adminDeps)

	// Background sweep returning reserved stock from abandoned orders.
	expirerCtx, stopExpirer := context.WithCancel(ctx)
	defer stopExpirer()
	expirer := worker.NewOrderExpirer(orderService, worker.ExpirerConfig{
		Interval: cfg.Orders.ExpiryInterval,
		MaxAge:   cfg.Orders.ExpiryMaxAge,
	}, logger)
	go expirer.Start(expirerCtx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
