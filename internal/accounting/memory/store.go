// Package memory provides an in-process ledger store. Transactions work on a
// copy of the state that replaces the committed state only when fn succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

type periodKey struct {
	tenantID int64
	year     int
	month    int
}

type state struct {
	nextAccountID int64
	nextEntryID   int64
	nextLineID    int64
	nextAuditID   int64
	accounts      map[int64]accounting.Account
	entries       map[int64]accounting.JournalEntry
	periods       map[periodKey]accounting.Period
	audit         []accounting.AuditEntry
}

func (s *state) clone() *state {
	out := *s
	out.accounts = make(map[int64]accounting.Account, len(s.accounts))
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	out.entries = make(map[int64]accounting.JournalEntry, len(s.entries))
	for k, v := range s.entries {
		out.entries[k] = v
	}
	out.periods = make(map[periodKey]accounting.Period, len(s.periods))
	for k, v := range s.periods {
		out.periods[k] = v
	}
	out.audit = append([]accounting.AuditEntry(nil), s.audit...)
	return &out
}

// Store is a RepositoryPort backed by maps.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New constructs an empty store.
func New() *Store {
	return &Store{state: &state{
		accounts: make(map[int64]accounting.Account),
		entries:  make(map[int64]accounting.JournalEntry),
		periods:  make(map[periodKey]accounting.Period),
	}}
}

// WithTx runs fn against a snapshot and commits it when fn returns nil.
// Transactions are fully serialized.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &txStore{st: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

type txStore struct {
	st *state
}

// LockTenant is a no-op: WithTx already holds the store lock.
func (t *txStore) LockTenant(context.Context, int64) error { return nil }

func (t *txStore) ListTenants(context.Context) ([]int64, error) {
	seen := make(map[int64]struct{})
	for _, a := range t.st.accounts {
		seen[a.TenantID] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *txStore) CountAccounts(_ context.Context, tenantID int64) (int, error) {
	n := 0
	for _, a := range t.st.accounts {
		if a.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (t *txStore) InsertAccount(_ context.Context, account accounting.Account) (accounting.Account, error) {
	for _, a := range t.st.accounts {
		if a.TenantID == account.TenantID && a.Code == account.Code {
			return accounting.Account{}, fmt.Errorf("%w: %s", accounting.ErrDuplicateAccountCode, account.Code)
		}
	}
	t.st.nextAccountID++
	account.ID = t.st.nextAccountID
	account.Tags = append([]accounting.Tag(nil), account.Tags...)
	t.st.accounts[account.ID] = account
	return account, nil
}

func (t *txStore) ListAccounts(_ context.Context, tenantID int64, activeOnly bool) ([]accounting.Account, error) {
	var out []accounting.Account
	for _, a := range t.st.accounts {
		if a.TenantID != tenantID || (activeOnly && !a.IsActive) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *txStore) GetAccount(_ context.Context, tenantID, accountID int64) (accounting.Account, error) {
	a, ok := t.st.accounts[accountID]
	if !ok || a.TenantID != tenantID {
		return accounting.Account{}, &accounting.AccountNotFoundError{ID: accountID}
	}
	return a, nil
}

func (t *txStore) GetAccountByCode(_ context.Context, tenantID int64, code string) (accounting.Account, error) {
	for _, a := range t.st.accounts {
		if a.TenantID == tenantID && a.Code == code {
			return a, nil
		}
	}
	return accounting.Account{}, &accounting.AccountNotFoundError{Code: code}
}

func (t *txStore) SetAccountActive(ctx context.Context, tenantID, accountID int64, active bool, at time.Time) error {
	a, err := t.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	a.IsActive = active
	a.UpdatedAt = at
	t.st.accounts[a.ID] = a
	return nil
}

func (t *txStore) NextEntryNumber(_ context.Context, tenantID int64) (int64, error) {
	var last int64
	for _, e := range t.st.entries {
		if e.TenantID == tenantID && e.Number > last {
			last = e.Number
		}
	}
	return last + 1, nil
}

func (t *txStore) InsertEntry(_ context.Context, entry accounting.JournalEntry) (accounting.JournalEntry, error) {
	for _, e := range t.st.entries {
		if e.TenantID != entry.TenantID {
			continue
		}
		if e.Number == entry.Number {
			return accounting.JournalEntry{}, fmt.Errorf("memory: duplicate entry number %d", entry.Number)
		}
		if entry.SourceModule != "" && e.SourceModule == entry.SourceModule && e.SourceID == entry.SourceID {
			return accounting.JournalEntry{}, accounting.ErrSourceAlreadyLinked
		}
	}
	t.st.nextEntryID++
	entry.ID = t.st.nextEntryID
	entry.Lines = t.assignLines(entry.ID, entry.Lines)
	t.st.entries[entry.ID] = entry
	return cloneEntry(entry), nil
}

func (t *txStore) assignLines(entryID int64, lines []accounting.JournalLine) []accounting.JournalLine {
	out := make([]accounting.JournalLine, len(lines))
	for i, line := range lines {
		t.st.nextLineID++
		line.ID = t.st.nextLineID
		line.EntryID = entryID
		if line.Position == 0 {
			line.Position = i + 1
		}
		out[i] = line
	}
	return out
}

func (t *txStore) UpdateEntryHeader(_ context.Context, entry accounting.JournalEntry) error {
	current, ok := t.st.entries[entry.ID]
	if !ok || current.TenantID != entry.TenantID {
		return &accounting.EntryNotFoundError{ID: entry.ID}
	}
	entry.Lines = current.Lines
	t.st.entries[entry.ID] = entry
	return nil
}

func (t *txStore) ReplaceEntryLines(_ context.Context, tenantID, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	current, ok := t.st.entries[entryID]
	if !ok || current.TenantID != tenantID {
		return nil, &accounting.EntryNotFoundError{ID: entryID}
	}
	current.Lines = t.assignLines(entryID, lines)
	t.st.entries[entryID] = current
	return append([]accounting.JournalLine(nil), current.Lines...), nil
}

func (t *txStore) GetEntry(_ context.Context, tenantID, entryID int64) (accounting.JournalEntry, error) {
	e, ok := t.st.entries[entryID]
	if !ok || e.TenantID != tenantID {
		return accounting.JournalEntry{}, &accounting.EntryNotFoundError{ID: entryID}
	}
	return cloneEntry(e), nil
}

func (t *txStore) FindEntryBySource(_ context.Context, tenantID int64, module string, sourceID uuid.UUID) (accounting.JournalEntry, error) {
	for _, e := range t.st.entries {
		if e.TenantID == tenantID && e.SourceModule == module && e.SourceID == sourceID {
			return cloneEntry(e), nil
		}
	}
	return accounting.JournalEntry{}, fmt.Errorf("%w: source %s/%s", accounting.ErrJournalNotFound, module, sourceID)
}

func (t *txStore) ListEntries(_ context.Context, tenantID int64, filter accounting.EntryFilter) ([]accounting.JournalEntry, error) {
	var out []accounting.JournalEntry
	for _, e := range t.st.entries {
		if e.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Period != "" && e.Period != filter.Period {
			continue
		}
		if filter.From != nil && e.Date.Before(accounting.DateOnly(*filter.From)) {
			continue
		}
		if filter.To != nil && e.Date.After(accounting.DateOnly(*filter.To)) {
			continue
		}
		e.Lines = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Number > out[j].Number
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (t *txStore) CountDrafts(_ context.Context, tenantID int64, period string) (int, error) {
	n := 0
	for _, e := range t.st.entries {
		if e.TenantID == tenantID && e.Period == period && e.Status == accounting.EntryStatusDraft {
			n++
		}
	}
	return n, nil
}

func (t *txStore) ApprovedTotals(_ context.Context, tenantID, accountID int64, through time.Time) (map[int64]accounting.AccountTotals, error) {
	out := make(map[int64]accounting.AccountTotals)
	for _, e := range t.st.entries {
		if e.TenantID != tenantID || e.Status != accounting.EntryStatusApproved || e.Date.After(through) {
			continue
		}
		for _, line := range e.Lines {
			if accountID != 0 && line.AccountID != accountID {
				continue
			}
			totals, ok := out[line.AccountID]
			if !ok {
				totals = accounting.AccountTotals{AccountID: line.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
			}
			totals.Debit = totals.Debit.Add(line.Debit)
			totals.Credit = totals.Credit.Add(line.Credit)
			out[line.AccountID] = totals
		}
	}
	return out, nil
}

func (t *txStore) ListApprovedLines(_ context.Context, tenantID, accountID int64, from, to *time.Time) ([]accounting.PostedLine, error) {
	var out []accounting.PostedLine
	for _, e := range t.st.entries {
		if e.TenantID != tenantID || e.Status != accounting.EntryStatusApproved {
			continue
		}
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		for _, line := range e.Lines {
			if accountID != 0 && line.AccountID != accountID {
				continue
			}
			desc := line.Description
			if desc == "" {
				desc = e.Description
			}
			out = append(out, accounting.PostedLine{
				EntryID:     e.ID,
				EntryNumber: e.Number,
				EntryType:   e.Type,
				Date:        e.Date,
				Reference:   e.Reference,
				AccountID:   line.AccountID,
				Position:    line.Position,
				Description: desc,
				Debit:       line.Debit,
				Credit:      line.Credit,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntryNumber != b.EntryNumber {
			return a.EntryNumber < b.EntryNumber
		}
		return a.Position < b.Position
	})
	return out, nil
}

func (t *txStore) GetPeriod(_ context.Context, tenantID int64, year, month int) (accounting.Period, error) {
	p, ok := t.st.periods[periodKey{tenantID, year, month}]
	if !ok {
		return accounting.Period{}, accounting.ErrPeriodNotFound
	}
	return p, nil
}

func (t *txStore) UpsertPeriod(_ context.Context, period accounting.Period) error {
	t.st.periods[periodKey{period.TenantID, period.Year, period.Month}] = period
	return nil
}

func (t *txStore) ListPeriods(_ context.Context, tenantID int64) ([]accounting.Period, error) {
	var out []accounting.Period
	for k, p := range t.st.periods {
		if k.tenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (t *txStore) InsertAudit(_ context.Context, entry accounting.AuditEntry) (accounting.AuditEntry, error) {
	t.st.nextAuditID++
	entry.ID = t.st.nextAuditID
	t.st.audit = append(t.st.audit, entry)
	return entry, nil
}

func (t *txStore) ListAudit(_ context.Context, tenantID int64, filter accounting.AuditFilter) ([]accounting.AuditEntry, error) {
	var out []accounting.AuditEntry
	for i := len(t.st.audit) - 1; i >= 0; i-- {
		e := t.st.audit[i]
		if e.TenantID != tenantID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ActorID != 0 && e.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && e.At.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.At.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return page(out, filter.Offset, filter.Limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneEntry(e accounting.JournalEntry) accounting.JournalEntry {
	e.Lines = append([]accounting.JournalLine(nil), e.Lines...)
	return e
}
