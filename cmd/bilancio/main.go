package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/auth"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

const shutdownTimeout = 30 * time.Second

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
	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	res, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	store := res.Store
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:          store,
		Budget:         services.NewBudgetEngine(store, res.Publisher, nil),
		Summaries:      services.NewSummaryService(store, nil),
		Views:          services.NewExpenseViews(store),
		Accounts:       services.NewAccountService(store, auth.NewPasswordHasher(cfg.BcryptCost)),
		PaymentMethods: services.NewPaymentMethodService(store),
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Logger:         logger,
	}, apphttp.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting bilancio server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		m := srv.Metrics()
		logger.Info("Server stopped gracefully",
			"requests", m.TotalRequests,
			"server_failures", m.ServerFailures)
		return nil
	})
	return g.Wait()
}
