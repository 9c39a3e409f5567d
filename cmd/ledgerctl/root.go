package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

// cli carries the state shared by every subcommand.
type cli struct {
	out    io.Writer
	rt     *app.Runtime
	owned  bool
	tenant int64
	actor  int64
}

func (c *cli) runtime(ctx context.Context) (*app.Runtime, error) {
	if c.rt != nil {
		return c.rt, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.rt, c.owned = rt, true
	return rt, nil
}

func (c *cli) close() error {
	if c.rt == nil || !c.owned {
		return nil
	}
	err := c.rt.Close()
	c.rt, c.owned = nil, false
	return err
}

func (c *cli) requireTenant() error {
	if c.tenant <= 0 {
		return errors.New("--tenant is required")
	}
	return nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate the double-entry ledger",
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.close()
		},
	}
	root.SetOut(c.out)
	root.PersistentFlags().Int64Var(&c.tenant, "tenant", 0, "tenant id")
	root.PersistentFlags().Int64Var(&c.actor, "actor", 1, "actor id recorded in the audit log")

	root.AddCommand(
		newMigrateCmd(c),
		newSeedCmd(c),
		newPostCmd(c),
		newPeriodCmd(c),
		newTrialBalanceCmd(c),
		newJobsCmd(c),
	)
	return root
}
