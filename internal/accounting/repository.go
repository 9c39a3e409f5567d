package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations. Every method is scoped to a
// tenant; rows of other tenants are invisible.
type TxRepository interface {
	// LockTenant serializes writers of one tenant until the transaction ends.
	LockTenant(ctx context.Context, tenantID int64) error
	ListTenants(ctx context.Context) ([]int64, error)

	CountAccounts(ctx context.Context, tenantID int64) (int, error)
	InsertAccount(ctx context.Context, account Account) (Account, error)
	ListAccounts(ctx context.Context, tenantID int64, activeOnly bool) ([]Account, error)
	GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error)
	GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	SetAccountActive(ctx context.Context, tenantID, accountID int64, active bool, at time.Time) error

	NextEntryNumber(ctx context.Context, tenantID int64) (int64, error)
	// InsertEntry stores the header and its lines. It returns
	// ErrSourceAlreadyLinked when the source link is taken.
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	UpdateEntryHeader(ctx context.Context, entry JournalEntry) error
	ReplaceEntryLines(ctx context.Context, tenantID, entryID int64, lines []JournalLine) ([]JournalLine, error)
	GetEntry(ctx context.Context, tenantID, entryID int64) (JournalEntry, error)
	FindEntryBySource(ctx context.Context, tenantID int64, module string, sourceID uuid.UUID) (JournalEntry, error)
	ListEntries(ctx context.Context, tenantID int64, filter EntryFilter) ([]JournalEntry, error)
	CountDrafts(ctx context.Context, tenantID int64, period string) (int, error)

	// ApprovedTotals sums APPROVED lines dated on or before through, keyed by
	// account. accountID 0 selects every account.
	ApprovedTotals(ctx context.Context, tenantID, accountID int64, through time.Time) (map[int64]AccountTotals, error)
	// ListApprovedLines returns APPROVED lines in [from, to] ordered by entry
	// date, entry number and line position. Nil bounds are open.
	ListApprovedLines(ctx context.Context, tenantID, accountID int64, from, to *time.Time) ([]PostedLine, error)

	GetPeriod(ctx context.Context, tenantID int64, year, month int) (Period, error)
	UpsertPeriod(ctx context.Context, period Period) error
	ListPeriods(ctx context.Context, tenantID int64) ([]Period, error)

	InsertAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAudit(ctx context.Context, tenantID int64, filter AuditFilter) ([]AuditEntry, error)
}

// AccountTotals aggregates approved activity of one account.
type AccountTotals struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostedLine is an approved line joined with its entry header.
type PostedLine struct {
	EntryID     int64
	EntryNumber int64
	EntryType   EntryType
	Date        time.Time
	Reference   string
	AccountID   int64
	Position    int
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// ChangeObserver is notified after a ledger mutation commits.
type ChangeObserver interface {
	LedgerChanged(ctx context.Context, tenantID int64, action AuditAction)
}

// ChangeObserverFunc adapts a function to ChangeObserver.
type ChangeObserverFunc func(ctx context.Context, tenantID int64, action AuditAction)

// LedgerChanged calls f.
func (f ChangeObserverFunc) LedgerChanged(ctx context.Context, tenantID int64, action AuditAction) {
	f(ctx, tenantID, action)
}
