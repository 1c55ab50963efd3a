package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/storage"
	"bilancio/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required by the worker")
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting bilancio-worker", "alert_percent", cfg.BudgetAlertPercent)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	// Events carry the month totals; the SQLite ledger, when shared with the
	// API, lets alerts reflect writes that happened after the event.
	var ledger worker.MonthReader
	if backend.Type(cfg.DataBackend) == backend.SQLite {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return fmt.Errorf("open sqlite ledger: %w", err)
		}
		defer repo.Close()
		ledger = repo
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	alerts := worker.NewBudgetAlerts(cfg.BudgetAlertPercent, ledger, worker.NewLogNotifier(logger), logger)

	err = client.ConsumeExpenseRecorded(ctx, alerts.HandleExpenseRecorded)
	if errors.Is(err, context.Canceled) {
		logger.Info("Worker shutdown complete")
		return nil
	}
	return err
}
