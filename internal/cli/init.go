// Package cli holds the start-up steps shared by cmd/bilancio,
// cmd/bilancio-worker and cmd/bilancioctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bilancio/internal/backend"
	"bilancio/internal/config"
	"bilancio/internal/log"
)

// LoadEnvFile loads .env files when present. Missing files are not an error.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// SetupLogger builds the process logger for component at the configured
// level and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: component, Output: out})
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads and validates configuration from the environment.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend opens the store and optional publisher named by cfg.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).Open(ctx, bcfg)
}

// SignalContext is cancelled on SIGINT or SIGTERM. The returned stop
// releases the signal handler and waits for the watcher to exit; only a real
// signal is logged.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigs:
			logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
		<-done
	}
}
