package backend

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/amqp"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type dialFunc func(url, exchange, queue string) (Publisher, error)

func dialAMQP(url, exchange, queue string) (Publisher, error) {
	client, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type Factory struct {
	logger *log.Logger
	dial   dialFunc
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend), dial: dialAMQP}
}

// Open creates the store for config.Type and, when configured, the broker
// connection. A broker that cannot be reached is logged and skipped: the
// ledger works without events.
func (f *Factory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store ledger.Store
	switch config.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		store = repo
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case Memory:
		store = memory.NewWithPaymentMethods(config.PaymentMethods...)
		f.logger.InfoContext(ctx, "Initialized memory backend", "payment_methods", len(config.PaymentMethods))
	}

	var publisher Publisher
	if config.AMQPURL != "" {
		p, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "AMQP unavailable, continuing without budget events", log.FieldError, err)
		} else {
			publisher = p
			f.logger.InfoContext(ctx, "Initialized AMQP publisher", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
		}
	}

	return &Result{
		Store:     store,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			errs = append(errs, store.Close())
			return errors.Join(errs...)
		},
	}, nil
}
