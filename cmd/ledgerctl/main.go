// Command ledgerctl operates a ledger store from the shell: schema
// migration, chart seeding, posting, period locks, trial balances and the
// background job queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&cli{out: os.Stdout})
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
