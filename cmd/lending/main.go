// cmd/lending/main.go
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

	"libralend/internal/api"
	"libralend/internal/auth"
	"libralend/internal/billing"
	"libralend/internal/catalog"
	"libralend/internal/circulation"
	"libralend/internal/config"
	"libralend/internal/gateway"
	"libralend/internal/notify"
	"libralend/internal/overdue"
	"libralend/internal/storage/sqlstore"
	"libralend/internal/telemetry"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("lending service stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info("starting lending service", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, "libralend", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdown(log, "telemetry", providers.Shutdown)
	meter := providers.Meter()

	store, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher, err := notify.NewDispatcher(newSender(cfg, log), notify.DispatcherConfig{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
		Overflow:  cfg.NotifyOverflow,
	}, log)
	if err != nil {
		return err
	}
	defer shutdown(log, "notification dispatcher", dispatcher.Close)

	ledger, err := catalog.NewLedger(meter)
	if err != nil {
		return err
	}
	sweeper, err := overdue.NewSweeper(store, dispatcher, meter, time.Now, log)
	if err != nil {
		return err
	}

	gw := newGateway(cfg, log)
	billingCfg := billing.Config{
		SuccessURL:     cfg.SuccessURL,
		CancelURL:      cfg.CancelURL,
		FineMultiplier: cfg.FineMultiplier,
	}
	router := api.NewRouter(api.Deps{
		Log:         log,
		Verifier:    auth.NewVerifier(cfg.JWTSecret, log),
		Health:      store,
		Catalog:     catalog.NewService(store, log),
		Circulation: circulation.NewService(store, ledger, gw, billingCfg, log),
		Billing:     billing.NewService(store, gw, dispatcher, billingCfg, log),
		Sweeper:     sweeper,
	})

	go sweeper.Run(ctx, cfg.OverdueSweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newGateway(cfg config.Config, log *slog.Logger) gateway.Gateway {
	if cfg.Gateway == config.GatewayFake {
		log.Warn("using the in-memory payment gateway, no payment is charged", "autopay", cfg.FakeAutoPay)
		fake := gateway.NewFake()
		fake.AutoPay = cfg.FakeAutoPay
		return fake
	}
	return gateway.NewClient(gateway.ClientConfig{
		BaseURL:   cfg.GatewayURL,
		APIKey:    cfg.GatewayAPIKey,
		Timeout:   cfg.GatewayTimeout,
		RateLimit: cfg.GatewayRateLimit,
	}, log)
}

func newSender(cfg config.Config, log *slog.Logger) notify.Sender {
	if cfg.TelegramToken == "" {
		return notify.LogSender{Log: log}
	}
	return notify.NewTelegramSender(notify.TelegramConfig{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
	}, log)
}

func shutdown(log *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("shutdown failed", "component", name, "error", err)
	}
}
