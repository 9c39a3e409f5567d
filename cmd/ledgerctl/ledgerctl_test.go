package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	t.Setenv("STORE_DRIVER", app.StoreMemory)
	t.Setenv("REPORT_CACHE", app.ReportCacheOff)
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	rt, err := app.Bootstrap(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	out := &bytes.Buffer{}
	return &cli{out: out, rt: rt}, out
}

func run(t *testing.T, c *cli, out *bytes.Buffer, args ...string) (string, error) {
	t.Helper()
	out.Reset()
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLedgerctlBookkeepingFlow(t *testing.T) {
	c, out := newTestCLI(t)

	got, err := run(t, c, out, "--tenant", "7", "seed")
	require.NoError(t, err)
	require.Contains(t, got, "seeded")
	got, err = run(t, c, out, "--tenant", "7", "seed")
	require.NoError(t, err)
	require.Contains(t, got, "already has a chart")

	cash, err := c.rt.Ledger.GetAccountByCode(context.Background(), 7, "110505")
	require.NoError(t, err)
	capital, err := c.rt.Ledger.GetAccountByCode(context.Background(), 7, "3105")
	require.NoError(t, err)
	debitID, creditID := cash.ID, capital.ID

	body := `{"date":"2024-03-10","description":"capital","lines":[` +
		`{"account_id":` + strconv.FormatInt(debitID, 10) + `,"debit":"1234567.5"},` +
		`{"account_id":` + strconv.FormatInt(creditID, 10) + `,"credit":"1234567.5"}]}`
	file := filepath.Join(t.TempDir(), "entry.json")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))

	got, err = run(t, c, out, "--tenant", "7", "post", "--file", file, "--approve")
	require.NoError(t, err)
	require.Contains(t, got, "entry #1 APPROVED")

	got, err = run(t, c, out, "--tenant", "7", "trial-balance", "--as-of", "2024-03-31", "--level", "1")
	require.NoError(t, err)
	require.Contains(t, got, "1,234,567.50")
	require.Contains(t, got, "TOTAL")

	got, err = run(t, c, out, "--tenant", "7", "trial-balance", "--format", "csv")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "# trial balance"), got)
	require.Contains(t, got, "code,name,type")

	got, err = run(t, c, out, "--tenant", "7", "period", "close", "2024-03")
	require.NoError(t, err)
	require.Equal(t, "2024-03 CLOSED\n", got)

	_, err = run(t, c, out, "--tenant", "7", "post", "--file", file)
	require.ErrorIs(t, err, accounting.ErrPeriodLocked)

	got, err = run(t, c, out, "--tenant", "7", "period", "status", "2024-03")
	require.NoError(t, err)
	require.Contains(t, got, "CLOSED drafts=0")

	got, err = run(t, c, out, "--tenant", "7", "period", "list")
	require.NoError(t, err)
	require.Contains(t, got, "2024-03")

	got, err = run(t, c, out, "--tenant", "7", "jobs", "check")
	require.NoError(t, err)
	require.Contains(t, got, "0 violation(s)")
}

func TestLedgerctlArgumentErrors(t *testing.T) {
	c, out := newTestCLI(t)

	_, err := run(t, c, out, "seed")
	require.ErrorContains(t, err, "--tenant")

	_, err = run(t, c, out, "--tenant", "1", "period", "close", "2024-13")
	require.ErrorIs(t, err, accounting.ErrInvalidPeriod)

	_, err = run(t, c, out, "--tenant", "1", "trial-balance", "--as-of", "31/03/2024")
	require.Error(t, err)

	_, err = run(t, c, out, "--tenant", "1", "trial-balance", "--format", "xml")
	require.ErrorContains(t, err, "unknown --format")
}

func TestAmountFormatting(t *testing.T) {
	cases := map[string]string{
		"0":          "-",
		"12":         "12.00",
		"-0.5":       "-0.50",
		"1234567.5":  "1,234,567.50",
		"-98765.432": "-98,765.43",
	}
	for in, want := range cases {
		require.Equal(t, want, amount(decimal.RequireFromString(in)), in)
	}
}
