// Command bilancioctl administers a bilancio ledger directly through its
// SQLite database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"bilancio/internal/ledger"
	"bilancio/internal/storage"
)

func main() {
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		open:   openSQLite,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openSQLite(_ context.Context, path string) (ledger.Store, error) {
	return storage.NewSQLiteRepository(path)
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	open   func(ctx context.Context, dbPath string) (ledger.Store, error)

	dbPath     string
	bcryptCost int
}

// withStore opens the ledger for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(ledger.Store) error) error {
	store, err := a.open(ctx, a.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
