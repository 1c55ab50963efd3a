// Package backend wires the ledger store and the optional event publisher
// selected by configuration.
package backend

import (
	"context"

	"bilancio/internal/amqp"
	"bilancio/internal/ledger"
)

// Publisher is the event side of a backend. It is nil when no broker is
// configured.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
	Close() error
}

type CleanupFunc func() error

// Result is an opened backend. Cleanup releases everything it holds.
type Result struct {
	Store     ledger.Store
	Publisher Publisher
	Cleanup   CleanupFunc
}

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

func Types() []Type {
	return []Type{SQLite, Memory}
}
