package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/account"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/logging"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host))

	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	ctx := context.Background()

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	}

	notifier, err := notify.NewNotifier(logger)
	if err != nil {
		logger.Fatal("Failed to start notifier", zap.Error(err))
	}
	defer notifier.Stop()

	opts := []checkout.Option{
		checkout.WithLocker(redisRepo),
		checkout.WithOrderCache(redisRepo),
		checkout.WithNotifier(notifier),
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Warn("MongoDB unavailable, continuing without audit log", zap.Error(err))
	} else {
		defer mongoRepo.Close(context.Background())
		opts = append(opts, checkout.WithAuditLogger(mongoRepo))
	}

	payments := payment.NewClient(&cfg.Paystack, logger)

	// Setup service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
	} else {
		defer sd.Close()
	}

	clients := grpc.NewClientManager(cfg, logger, sd)
	var orders grpc.OrderServiceClient
	if err := clients.Connect(); err != nil {
		logger.Warn("Order service unavailable, order history disabled", zap.Error(err))
	} else {
		defer clients.Close()
		orders = clients.OrderClient()
	}

	gw := gateway.NewGateway(cfg, logger, gateway.Services{
		Catalog:  catalog.NewService(db, logger),
		Cart:     cart.NewService(db, logger),
		Checkout: checkout.NewService(db, payments, logger, checkout.OptionsFromConfig(cfg), opts...),
		Account:  account.NewService(db, logger),
		Orders:   orders,
	})
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Fatal("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}

	logger.Info("Storefront stopped")
}
