package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Integrity checks reported in violations and metrics.
const (
	CheckTrialBalance       = "trial_balance"
	CheckChartTree          = "chart_tree"
	CheckClosedPeriodDrafts = "closed_period_drafts"
)

// Ledger is the read side of the ledger the integrity job needs.
type Ledger interface {
	ListTenants(ctx context.Context) ([]int64, error)
	TrialBalance(ctx context.Context, tenantID int64, asOf *time.Time) (accounting.TrialBalance, error)
	AccountTree(ctx context.Context, tenantID int64) (*accounting.ChartTree, error)
	ListPeriods(ctx context.Context, tenantID int64) ([]accounting.Period, error)
	PeriodStatus(ctx context.Context, tenantID int64, year, month int) (accounting.PeriodStatusView, error)
	// IsBalanced applies the same epsilon approval does.
	IsBalanced(debit, credit decimal.Decimal) bool
}

// Violation is one failed check for one tenant.
type Violation struct {
	TenantID int64
	Check    string
	Detail   string
}

// IntegrityReport summarises one run.
type IntegrityReport struct {
	Tenants    int
	Violations []Violation
}

// GLIntegrityJob re-derives the trial balance and structural invariants of
// each tenant and reports what does not hold. It never repairs anything.
type GLIntegrityJob struct {
	Ledger  Ledger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the integrity check handler.
func NewGLIntegrityJob(ledger Ledger, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle executes TaskLedgerGLIntegrity. Violations are logged and counted;
// they do not fail the task, since a retry would find the same books.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("gl integrity: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run checks the selected tenants.
func (j *GLIntegrityJob) Run(ctx context.Context, payload GLIntegrityPayload) (report IntegrityReport, err error) {
	run := j.Metrics.Track(TaskLedgerGLIntegrity)
	defer func() {
		err = run.End(err)
	}()
	start := time.Now()

	asOf, err := payload.asOf()
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	tenants := []int64{payload.TenantID}
	if payload.TenantID == 0 {
		if tenants, err = j.Ledger.ListTenants(ctx); err != nil {
			return IntegrityReport{}, fmt.Errorf("gl integrity: list tenants: %w", err)
		}
	}

	logger := j.logger()
	for _, tenantID := range tenants {
		violations, err := j.checkTenant(ctx, tenantID, asOf)
		if err != nil {
			logger.Error("gl integrity check failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return report, err
		}
		report.Tenants++
		run.TenantChecked()
		for _, v := range violations {
			logger.Warn("gl integrity violation",
				slog.Int64("tenant_id", v.TenantID),
				slog.String("check", v.Check),
				slog.String("detail", v.Detail))
			j.Metrics.AddViolations(v.Check, 1)
		}
		report.Violations = append(report.Violations, violations...)
	}

	logger.Info("gl integrity check completed",
		slog.String("job", "gl_integrity"),
		slog.Int("tenants", report.Tenants),
		slog.Int("violations", len(report.Violations)),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

func (j *GLIntegrityJob) checkTenant(ctx context.Context, tenantID int64, asOf *time.Time) ([]Violation, error) {
	var out []Violation

	tb, err := j.Ledger.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	if !j.Ledger.IsBalanced(tb.Totals.TotalDebits, tb.Totals.TotalCredits) {
		out = append(out, Violation{TenantID: tenantID, Check: CheckTrialBalance,
			Detail: fmt.Sprintf("debits %s != credits %s", tb.Totals.TotalDebits, tb.Totals.TotalCredits)})
	}
	if !j.Ledger.IsBalanced(tb.Totals.TotalDebitBalance, tb.Totals.TotalCreditBalance) {
		out = append(out, Violation{TenantID: tenantID, Check: CheckTrialBalance,
			Detail: fmt.Sprintf("debit balances %s != credit balances %s", tb.Totals.TotalDebitBalance, tb.Totals.TotalCreditBalance)})
	}

	if _, err := j.Ledger.AccountTree(ctx, tenantID); err != nil {
		var orphan *accounting.OrphanAccountError
		if !errors.As(err, &orphan) && !errors.Is(err, accounting.ErrDuplicateAccountCode) && !errors.Is(err, accounting.ErrInvalidAccountCode) {
			return nil, err
		}
		out = append(out, Violation{TenantID: tenantID, Check: CheckChartTree, Detail: err.Error()})
	}

	periods, err := j.Ledger.ListPeriods(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		if !p.IsClosed {
			continue
		}
		status, err := j.Ledger.PeriodStatus(ctx, tenantID, p.Year, p.Month)
		if err != nil {
			return nil, err
		}
		if status.DraftCount > 0 {
			out = append(out, Violation{TenantID: tenantID, Check: CheckClosedPeriodDrafts,
				Detail: fmt.Sprintf("period %s is closed with %d drafts", status.Period, status.DraftCount)})
		}
	}
	return out, nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
