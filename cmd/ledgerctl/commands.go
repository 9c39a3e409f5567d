package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger schema in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "schema ready (%s)\n", rt.Config.StoreDriver)
			return nil
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	var template string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the chart of accounts from a builtin template or a TOML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireTenant(); err != nil {
				return err
			}
			tpl, err := accounts.Load(template)
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			res, err := rt.Ledger.SeedFromTemplate(cmd.Context(), c.tenant, c.actor, tpl.Rows())
			if err != nil {
				return err
			}
			if res.AlreadyInitialized {
				fmt.Fprintf(c.out, "tenant %d already has a chart of accounts\n", c.tenant)
				return nil
			}
			fmt.Fprintf(c.out, "seeded %d accounts for tenant %d\n", res.Inserted, c.tenant)
			return nil
		},
	}
	cmd.Flags().StringVar(&template, "template", accounts.BuiltinPUC, "builtin template name or path to a TOML file")
	return cmd
}

func newPostCmd(c *cli) *cobra.Command {
	var (
		file    string
		approve bool
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create a journal entry from JSON (same body as POST /journals)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireTenant(); err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var req journals.EntryRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			if err := validator.New().Struct(req); err != nil {
				return fmt.Errorf("%w: %v", accounting.ErrInvalidEntry, err)
			}
			draft, err := req.Draft()
			if err != nil {
				return err
			}
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			store := rt.Ledger.CreateEntry
			if approve {
				store = rt.Ledger.PostEntry
			}
			entry, err := store(cmd.Context(), c.tenant, c.actor, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "entry #%d %s (id %d)\n", entry.Number, entry.Status, entry.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file, - for stdin")
	cmd.Flags().BoolVar(&approve, "approve", false, "create and approve in one step; nothing is stored if approval fails")
	return cmd
}

func newPeriodCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Inspect and lock accounting periods",
	}
	action := func(use, short string, run func(cmd *cobra.Command, year, month int) (accounting.Period, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " YYYY-MM",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.requireTenant(); err != nil {
					return err
				}
				year, month, err := accounting.ParsePeriodCode(args[0])
				if err != nil {
					return err
				}
				p, err := run(cmd, year, month)
				if err != nil {
					return err
				}
				state := "OPEN"
				if p.IsClosed {
					state = "CLOSED"
				}
				fmt.Fprintf(c.out, "%s %s\n", accounting.PeriodCode(p.Year, p.Month), state)
				return nil
			},
		}
	}
	cmd.AddCommand(
		action("close", "Close a period; fails while drafts exist", func(cmd *cobra.Command, year, month int) (accounting.Period, error) {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return accounting.Period{}, err
			}
			return rt.Ledger.ClosePeriod(cmd.Context(), c.tenant, year, month, c.actor)
		}),
		action("reopen", "Reopen a closed period", func(cmd *cobra.Command, year, month int) (accounting.Period, error) {
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return accounting.Period{}, err
			}
			return rt.Ledger.ReopenPeriod(cmd.Context(), c.tenant, year, month, c.actor)
		}),
		&cobra.Command{
			Use:   "status YYYY-MM",
			Short: "Show the lock state and open drafts of a period",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.requireTenant(); err != nil {
					return err
				}
				year, month, err := accounting.ParsePeriodCode(args[0])
				if err != nil {
					return err
				}
				rt, err := c.runtime(cmd.Context())
				if err != nil {
					return err
				}
				view, err := rt.Ledger.PeriodStatus(cmd.Context(), c.tenant, year, month)
				if err != nil {
					return err
				}
				state := "OPEN"
				if view.IsClosed {
					state = "CLOSED"
				}
				fmt.Fprintf(c.out, "%s %s drafts=%d\n", view.Period, state, view.DraftCount)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List periods that have a lock record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.requireTenant(); err != nil {
					return err
				}
				rt, err := c.runtime(cmd.Context())
				if err != nil {
					return err
				}
				periods, err := rt.Ledger.ListPeriods(cmd.Context(), c.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PERIOD\tSTATE\tUPDATED")
				for _, p := range periods {
					state := "OPEN"
					if p.IsClosed {
						state = "CLOSED"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", accounting.PeriodCode(p.Year, p.Month), state, p.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

func newTrialBalanceCmd(c *cli) *cobra.Command {
	var (
		asOf   string
		level  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireTenant(); err != nil {
				return err
			}
			var cutoff *time.Time
			if asOf != "" {
				t, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
				cutoff = &t
			}
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			switch format {
			case "csv":
				tb, err := rt.Reports.TrialBalance(cmd.Context(), c.tenant, cutoff)
				if err != nil {
					return err
				}
				return reports.WriteTrialBalanceCSV(c.out, tb)
			case "json":
				grouped, err := rt.Reports.GroupedTrialBalance(cmd.Context(), c.tenant, cutoff, level)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(grouped)
			case "text":
				grouped, err := rt.Reports.GroupedTrialBalance(cmd.Context(), c.tenant, cutoff, level)
				if err != nil {
					return err
				}
				return printTrialBalance(c.out, grouped)
			default:
				return fmt.Errorf("unknown --format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "cutoff date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&level, "level", 0, "roll accounts up to this level (0 keeps every account)")
	cmd.Flags().StringVar(&format, "format", "text", "text, csv or json")
	return cmd
}
