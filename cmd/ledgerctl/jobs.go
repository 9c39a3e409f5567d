package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	var asOf string
	payload := func() (jobs.GLIntegrityPayload, error) {
		if asOf != "" {
			if _, err := time.Parse(time.DateOnly, asOf); err != nil {
				return jobs.GLIntegrityPayload{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
			}
		}
		return jobs.GLIntegrityPayload{TenantID: c.tenant, AsOf: asOf}, nil
	}

	trigger := &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue a GL integrity check (every tenant unless --tenant is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := payload()
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer client.Close()
			info, err := client.EnqueueGLIntegrity(cmd.Context(), p)
			if err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			fmt.Fprintf(c.out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Run the GL integrity check in-process and print the violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := payload()
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			job := jobs.NewGLIntegrityJob(rt.Ledger, rt.Logger, jobmetrics.NewMetrics(rt.Metrics.Registerer()))
			report, err := job.Run(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, v := range report.Violations {
				fmt.Fprintf(c.out, "tenant %d %s: %s\n", v.TenantID, v.Check, v.Detail)
			}
			fmt.Fprintf(c.out, "checked %d tenant(s), %d violation(s)\n", report.Tenants, len(report.Violations))
			if len(report.Violations) > 0 {
				return errors.New("integrity check failed")
			}
			return nil
		},
	}
	for _, sub := range []*cobra.Command{trigger, check} {
		sub.Flags().StringVar(&asOf, "as-of", "", "cutoff date YYYY-MM-DD (default today)")
	}

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Print the state of the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer inspector.Close()
			stats, err := jobs.InspectQueue(inspector)
			if err != nil {
				return fmt.Errorf("inspect queue: %w", err)
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	cmd.AddCommand(trigger, check, inspect)
	return cmd
}
