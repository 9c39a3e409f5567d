package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memory"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// brokenLedger wraps a real service and reports books that do not add up.
type brokenLedger struct {
	*accounting.Service
	drafts int
}

func (b brokenLedger) TrialBalance(ctx context.Context, tenantID int64, asOf *time.Time) (accounting.TrialBalance, error) {
	tb, err := b.Service.TrialBalance(ctx, tenantID, asOf)
	tb.Totals.TotalDebits = tb.Totals.TotalDebits.Add(decimal.NewFromInt(1))
	return tb, err
}

func (b brokenLedger) PeriodStatus(ctx context.Context, tenantID int64, year, month int) (accounting.PeriodStatusView, error) {
	view, err := b.Service.PeriodStatus(ctx, tenantID, year, month)
	view.DraftCount = b.drafts
	return view, err
}

func seededService(t *testing.T) *accounting.Service {
	t.Helper()
	ctx := context.Background()
	svc := accounting.NewService(memory.New(), accounting.DefaultBalanceEpsilon)
	svc.WithNow(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	for _, tenant := range []int64{1, 2} {
		_, err := svc.SeedFromTemplate(ctx, tenant, 1, []accounting.AccountTemplate{
			{Code: "1", Name: "Asset", Type: accounting.AccountTypeAsset},
			{Code: "11", Name: "Cash", Type: accounting.AccountTypeAsset},
			{Code: "3", Name: "Equity", Type: accounting.AccountTypeEquity},
			{Code: "31", Name: "Capital", Type: accounting.AccountTypeEquity},
		})
		require.NoError(t, err)
	}
	cash, err := svc.GetAccountByCode(ctx, 1, "11")
	require.NoError(t, err)
	capital, err := svc.GetAccountByCode(ctx, 1, "31")
	require.NoError(t, err)
	entry, err := svc.CreateEntry(ctx, 1, 1, accounting.EntryDraft{
		Date: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		Lines: []accounting.DraftLine{
			{AccountID: cash.ID, Debit: decimal.NewFromInt(250), Credit: decimal.Zero},
			{AccountID: capital.ID, Debit: decimal.Zero, Credit: decimal.NewFromInt(250)},
		},
	})
	require.NoError(t, err)
	_, err = svc.ApproveEntry(ctx, 1, 1, entry.ID)
	require.NoError(t, err)
	_, err = svc.ClosePeriod(ctx, 1, 2024, 5, 1)
	require.NoError(t, err)
	return svc
}

func TestGLIntegrityCleanBooks(t *testing.T) {
	svc := seededService(t)
	job := NewGLIntegrityJob(svc, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	report, err := job.Run(context.Background(), GLIntegrityPayload{})
	require.NoError(t, err)
	require.Equal(t, 2, report.Tenants)
	require.Empty(t, report.Violations)

	report, err = job.Run(context.Background(), GLIntegrityPayload{TenantID: 1, AsOf: "2024-05-31"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Tenants)
}

func TestGLIntegrityToleratesEpsilonApprovals(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()
	cash, err := svc.GetAccountByCode(ctx, 2, "11")
	require.NoError(t, err)
	capital, err := svc.GetAccountByCode(ctx, 2, "31")
	require.NoError(t, err)
	entry, err := svc.CreateEntry(ctx, 2, 1, accounting.EntryDraft{
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Lines: []accounting.DraftLine{
			{AccountID: cash.ID, Debit: decimal.RequireFromString("100.005"), Credit: decimal.Zero},
			{AccountID: capital.ID, Debit: decimal.Zero, Credit: decimal.NewFromInt(100)},
		},
	})
	require.NoError(t, err)
	_, err = svc.ApproveEntry(ctx, 2, 1, entry.ID)
	require.NoError(t, err)

	job := NewGLIntegrityJob(svc, discardLogger(), nil)
	report, err := job.Run(ctx, GLIntegrityPayload{TenantID: 2})
	require.NoError(t, err)
	require.Empty(t, report.Violations)
}

func TestGLIntegrityReportsViolations(t *testing.T) {
	svc := seededService(t)
	job := NewGLIntegrityJob(brokenLedger{Service: svc, drafts: 2}, discardLogger(), nil)

	report, err := job.Run(context.Background(), GLIntegrityPayload{TenantID: 1})
	require.NoError(t, err)
	checks := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		require.Equal(t, int64(1), v.TenantID)
		checks = append(checks, v.Check)
	}
	require.Equal(t, []string{CheckTrialBalance, CheckClosedPeriodDrafts}, checks)
	require.Contains(t, report.Violations[1].Detail, "2024-05")
}

func TestGLIntegrityHandle(t *testing.T) {
	job := NewGLIntegrityJob(seededService(t), discardLogger(), nil)

	task, err := NewGLIntegrityTask(GLIntegrityPayload{TenantID: 2})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerGLIntegrity, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerGLIntegrity, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerGLIntegrity, []byte(`{"as_of":"31/05/2024"}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = NewGLIntegrityTask(GLIntegrityPayload{AsOf: "yesterday"})
	require.Error(t, err)

	var unset *GLIntegrityJob
	require.Error(t, unset.Handle(context.Background(), task))
}
