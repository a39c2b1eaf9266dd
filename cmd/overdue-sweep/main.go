// cmd/overdue-sweep/main.go
//
// overdue-sweep runs one overdue scan and exits, for use from cron.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"libralend/internal/config"
	"libralend/internal/notify"
	"libralend/internal/overdue"
	"libralend/internal/storage/sqlstore"
	"libralend/internal/telemetry"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("overdue sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	providers, err := telemetry.Setup(ctx, "libralend-overdue-sweep", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer providers.Shutdown(context.Background())

	store, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.TelegramToken != "" {
		sender = notify.NewTelegramSender(notify.TelegramConfig{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
		}, log)
	}
	dispatcher, err := notify.NewDispatcher(sender, notify.DispatcherConfig{QueueSize: 1, Workers: 1}, log)
	if err != nil {
		return err
	}

	sweeper, err := overdue.NewSweeper(store, dispatcher, providers.Meter(), time.Now, log)
	if err != nil {
		return err
	}
	report, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	if err := dispatcher.Close(ctx); err != nil {
		return err
	}
	log.Info("overdue sweep sent", "overdue", len(report.Loans), "dropped", dispatcher.Dropped())
	return nil
}
