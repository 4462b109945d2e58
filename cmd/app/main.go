package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shopfast/config"
	"shopfast/internal/infrastructure/repository/postgres"
	"shopfast/internal/server"
	"shopfast/internal/server/payfast"
	"shopfast/internal/services/alert"
	"shopfast/internal/services/hostcheck"
	"shopfast/internal/services/signature"
	"shopfast/internal/services/verification"
	"shopfast/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	appLog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer appLog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, &cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.NewOrderStore(pool.Pool)

	// One codec instance serves both directions: outbound payment
	// requests and inbound notification verification.
	codec := signature.NewCodec(cfg.PayFast.Passphrase)
	checker := hostcheck.NewChecker(nil, cfg.PayFast.ResolveTimeout, appLog)

	verifier := verification.NewVerifier(codec, checker, verification.Config{
		Host:           cfg.PayFast.Host(),
		TrustedHosts:   cfg.PayFast.TrustedHosts,
		ConfirmTimeout: cfg.PayFast.ConfirmTimeout,
	}, appLog)

	notifier, err := alert.NewNotifier(cfg.Alert, appLog)
	if err != nil {
		appLog.Fatal("failed to create alert notifier", zap.Error(err))
	}
	if notifier == nil {
		appLog.Info("payment alerts disabled, no bot token configured")
	}

	notifyHandler := payfast.NewHandler(store, verifier, notifier, cfg.PayFast.TrustForwardedHeader, appLog)
	srv := server.New(cfg, notifyHandler, pool, appLog)

	serverErr := make(chan error, 1)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := srv.Start(ctx); err != nil && err != context.Canceled {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		appLog.Info("received shutdown signal, initiating graceful shutdown")
		cancel()
	case err := <-serverErr:
		appLog.Error("server error", zap.Error(err))
		cancel()
	}

	// Wait for the drain to finish before the deferred pool close runs;
	// returning here would cut off in-flight notify requests.
	<-serverDone
	appLog.Info("server stopped")
}
