package reports

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

const (
	reportTrialBalance  = "trial_balance"
	reportGeneralLedger = "general_ledger"
	reportBalanceSheet  = "balance_sheet"
	reportIncome        = "income_statement"
)

// Service serves ledger reports through Cache. It is registered as a ledger
// observer so every committed mutation bumps the tenant's cache version. A
// tenant whose bump failed is served from the ledger directly until a later
// bump succeeds.
type Service struct {
	ledger  *accounting.Service
	cache   Cache
	metrics *Metrics
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
	stale   sync.Map // tenant id -> struct{}
}

func NewService(ledger *accounting.Service, cache Cache, metrics *Metrics, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{ledger: ledger, cache: cache, metrics: metrics, logger: logger, now: time.Now}
	ledger.AddObserver(s)
	return s
}

// WithNow overrides the clock used to resolve an omitted as-of date.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LedgerChanged bumps the tenant's cache version. On failure the tenant is
// marked stale so no report built before the change is served.
func (s *Service) LedgerChanged(ctx context.Context, tenantID int64, action accounting.AuditAction) {
	if err := s.cache.Bump(ctx, tenantID); err != nil {
		s.stale.Store(tenantID, struct{}{})
		s.logger.Warn("report cache bump failed, bypassing cache for tenant",
			slog.Int64("tenant_id", tenantID),
			slog.String("action", string(action)),
			slog.Any("error", err))
	}
}

// cacheUsable retries the pending bump of a stale tenant.
func (s *Service) cacheUsable(ctx context.Context, tenantID int64) bool {
	if _, stale := s.stale.Load(tenantID); !stale {
		return true
	}
	if err := s.cache.Bump(ctx, tenantID); err != nil {
		return false
	}
	s.stale.Delete(tenantID)
	s.logger.Info("report cache bump recovered", slog.Int64("tenant_id", tenantID))
	return true
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func (s *Service) asOf(asOf *time.Time) time.Time {
	if asOf != nil {
		return accounting.DateOnly(*asOf)
	}
	return accounting.DateOnly(s.now())
}

// fetch resolves a report from the cache, building it at most once per key
// across concurrent callers. Cache failures and stale tenants degrade to a
// direct build.
func fetch[T any](ctx context.Context, s *Service, report string, tenantID int64, parts []string, build func(context.Context) (T, error)) (T, error) {
	s.metrics.request(report)
	loader := func(ctx context.Context) (any, error) {
		started := time.Now()
		defer s.metrics.build(report, started)
		return build(ctx)
	}
	direct := func() (T, error) {
		v, err := loader(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}
	if !s.cacheUsable(ctx, tenantID) {
		return direct()
	}
	key, err := s.cache.BuildKey(ctx, tenantID, append([]string{report}, parts...)...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		return direct()
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out T
		if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
			return nil, err
		}
		return out, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// TrialBalance returns the trial balance as of asOf (today when nil).
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf *time.Time) (accounting.TrialBalance, error) {
	cutoff := s.asOf(asOf)
	return fetch(ctx, s, reportTrialBalance, tenantID, []string{cutoff.Format(time.DateOnly)},
		func(ctx context.Context) (accounting.TrialBalance, error) {
			return s.ledger.TrialBalance(ctx, tenantID, &cutoff)
		})
}

// GroupedTrialBalance rolls the trial balance up to level.
func (s *Service) GroupedTrialBalance(ctx context.Context, tenantID int64, asOf *time.Time, level int) (GroupedTrialBalance, error) {
	tb, err := s.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return GroupedTrialBalance{}, err
	}
	tree, err := s.ledger.AccountTree(ctx, tenantID)
	if err != nil {
		return GroupedTrialBalance{}, err
	}
	return BuildTrialBalance(tb, tree, level), nil
}

// Equation runs the accounting equation diagnostic on the trial balance.
func (s *Service) Equation(ctx context.Context, tenantID int64, asOf *time.Time) (accounting.EquationCheck, error) {
	tb, err := s.TrialBalance(ctx, tenantID, asOf)
	if err != nil {
		return accounting.EquationCheck{}, err
	}
	return s.ledger.CheckEquation(tb), nil
}

// GeneralLedger returns replayed account ledgers for the filter.
func (s *Service) GeneralLedger(ctx context.Context, tenantID int64, filter accounting.GeneralLedgerFilter) ([]accounting.AccountLedger, error) {
	parts := []string{strconv.FormatInt(filter.AccountID, 10), dateKey(filter.Start), dateKey(filter.End)}
	return fetch(ctx, s, reportGeneralLedger, tenantID, parts,
		func(ctx context.Context) ([]accounting.AccountLedger, error) {
			return s.ledger.GeneralLedger(ctx, tenantID, filter)
		})
}

// BalanceSheet classifies the trial balance as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, tenantID int64, asOf *time.Time) (BalanceSheet, error) {
	cutoff := s.asOf(asOf)
	return fetch(ctx, s, reportBalanceSheet, tenantID, []string{cutoff.Format(time.DateOnly)},
		func(ctx context.Context) (BalanceSheet, error) {
			tb, err := s.ledger.TrialBalance(ctx, tenantID, &cutoff)
			if err != nil {
				return BalanceSheet{}, err
			}
			return BuildBalanceSheet(tb), nil
		})
}

// IncomeStatement covers approved activity from from (inclusive, open-ended
// when nil) through to (today when nil).
func (s *Service) IncomeStatement(ctx context.Context, tenantID int64, from, to *time.Time) (ProfitAndLoss, error) {
	end := s.asOf(to)
	var start *time.Time
	if from != nil {
		d := accounting.DateOnly(*from)
		if d.After(end) {
			return ProfitAndLoss{}, accounting.ErrInvalidPeriod
		}
		start = &d
	}
	return fetch(ctx, s, reportIncome, tenantID, []string{dateKey(start), end.Format(time.DateOnly)},
		func(ctx context.Context) (ProfitAndLoss, error) {
			closing, err := s.ledger.TrialBalance(ctx, tenantID, &end)
			if err != nil {
				return ProfitAndLoss{}, err
			}
			rows := closing.Accounts
			if start != nil {
				before := start.AddDate(0, 0, -1)
				opening, err := s.ledger.TrialBalance(ctx, tenantID, &before)
				if err != nil {
					return ProfitAndLoss{}, err
				}
				rows = Activity(closing, opening)
			}
			pl := BuildProfitAndLoss(rows)
			pl.From = start
			pl.To = end
			return pl, nil
		})
}
