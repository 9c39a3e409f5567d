// Package sqlite stores the ledger in a single SQLite file. It serves
// single-node deployments and the ledgerctl tool; the schema mirrors the
// PostgreSQL one with TEXT columns for amounts and timestamps.
//
// Writers are serialized by SQLite itself: every transaction starts with
// BEGIN IMMEDIATE, so LockTenant is a no-op.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

//go:embed schema.sql
var schema string

const (
	dateLayout = "2006-01-02"
	// fixed width so that string comparison orders instants
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store is a RepositoryPort backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one connection keeps ":memory:" databases alive and matches SQLite's
	// single-writer model
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn in an immediate transaction and commits when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func isUnique(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTS(*t)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

func parseNullTS(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTS(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptrInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func (t *txStore) LockTenant(context.Context, int64) error { return nil }

func (t *txStore) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM ledger_accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *txStore) CountAccounts(ctx context.Context, tenantID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_accounts WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

func (t *txStore) InsertAccount(ctx context.Context, a accounting.Account) (accounting.Account, error) {
	tags := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		tags = append(tags, string(tag))
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return accounting.Account{}, err
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_accounts (tenant_id, code, name, type, nature, level, parent_id, tags, is_active, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.TenantID, a.Code, a.Name, string(a.Type), string(a.Nature), a.Level, nullInt(a.ParentID), string(rawTags), a.IsActive,
		formatTS(a.CreatedAt), formatTS(a.UpdatedAt))
	if err != nil {
		if isUnique(err) {
			return accounting.Account{}, fmt.Errorf("%w: %s", accounting.ErrDuplicateAccountCode, a.Code)
		}
		return accounting.Account{}, err
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return accounting.Account{}, err
	}
	return a, nil
}

const accountColumns = `id, tenant_id, code, name, type, nature, level, parent_id, tags, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (accounting.Account, error) {
	var (
		a                accounting.Account
		typ, nat, tags   string
		parent           sql.NullInt64
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &typ, &nat, &a.Level, &parent, &tags, &a.IsActive, &created, &updated); err != nil {
		return accounting.Account{}, err
	}
	a.Type = accounting.AccountType(typ)
	a.Nature = accounting.Nature(nat)
	a.ParentID = ptrInt(parent)
	a.ParentCode = accounting.ParentCode(a.Code)
	var names []string
	if err := json.Unmarshal([]byte(tags), &names); err != nil {
		return accounting.Account{}, fmt.Errorf("sqlite: account %s tags: %w", a.Code, err)
	}
	for _, n := range names {
		a.Tags = append(a.Tags, accounting.Tag(n))
	}
	var err error
	if a.CreatedAt, err = parseTS(created); err != nil {
		return accounting.Account{}, err
	}
	if a.UpdatedAt, err = parseTS(updated); err != nil {
		return accounting.Account{}, err
	}
	return a, nil
}

func (t *txStore) ListAccounts(ctx context.Context, tenantID int64, activeOnly bool) ([]accounting.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE tenant_id=?`
	if activeOnly {
		query += ` AND is_active=1`
	}
	rows, err := t.tx.QueryContext(ctx, query+` ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *txStore) GetAccount(ctx context.Context, tenantID, accountID int64) (accounting.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=? AND id=?`, tenantID, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return accounting.Account{}, &accounting.AccountNotFoundError{ID: accountID}
	}
	return a, err
}

func (t *txStore) GetAccountByCode(ctx context.Context, tenantID int64, code string) (accounting.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=? AND code=?`, tenantID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return accounting.Account{}, &accounting.AccountNotFoundError{Code: code}
	}
	return a, err
}

func (t *txStore) SetAccountActive(ctx context.Context, tenantID, accountID int64, active bool, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE ledger_accounts SET is_active=?, updated_at=? WHERE tenant_id=? AND id=?`,
		active, formatTS(at), tenantID, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &accounting.AccountNotFoundError{ID: accountID}
	}
	return nil
}

func (t *txStore) NextEntryNumber(ctx context.Context, tenantID int64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM ledger_entries WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

func (t *txStore) InsertEntry(ctx context.Context, e accounting.JournalEntry) (accounting.JournalEntry, error) {
	var module, source any
	if e.SourceModule != "" {
		module, source = e.SourceModule, e.SourceID.String()
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_entries (tenant_id, number, date, type, description, reference, status, period,
source_module, source_id, reversal_of, reversed_by, created_by, approved_by, approved_at, void_reason, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.TenantID, e.Number, formatDate(e.Date), string(e.Type), e.Description, e.Reference, string(e.Status), e.Period,
		module, source, nullInt(e.ReversalOf), nullInt(e.ReversedBy), e.CreatedBy, nullInt(e.ApprovedBy), nullTS(e.ApprovedAt),
		e.VoidReason, formatTS(e.CreatedAt), formatTS(e.UpdatedAt))
	if err != nil {
		if isUnique(err) && strings.Contains(err.Error(), "source_id") {
			return accounting.JournalEntry{}, accounting.ErrSourceAlreadyLinked
		}
		return accounting.JournalEntry{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return accounting.JournalEntry{}, err
	}
	if e.Lines, err = t.insertLines(ctx, e.ID, e.Lines); err != nil {
		return accounting.JournalEntry{}, err
	}
	return e, nil
}

func (t *txStore) insertLines(ctx context.Context, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	out := make([]accounting.JournalLine, len(lines))
	for i, line := range lines {
		line.EntryID = entryID
		if line.Position == 0 {
			line.Position = i + 1
		}
		res, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_lines (entry_id, account_id, position, debit, credit, description, third_party_ref)
VALUES (?,?,?,?,?,?,?)`,
			entryID, line.AccountID, line.Position, line.Debit.String(), line.Credit.String(), line.Description, line.ThirdPartyRef)
		if err != nil {
			return nil, err
		}
		if line.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (t *txStore) UpdateEntryHeader(ctx context.Context, e accounting.JournalEntry) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE ledger_entries SET date=?, type=?, description=?, reference=?, status=?, period=?,
reversed_by=?, approved_by=?, approved_at=?, void_reason=?, updated_at=?
WHERE tenant_id=? AND id=?`,
		formatDate(e.Date), string(e.Type), e.Description, e.Reference, string(e.Status), e.Period,
		nullInt(e.ReversedBy), nullInt(e.ApprovedBy), nullTS(e.ApprovedAt), e.VoidReason, formatTS(e.UpdatedAt),
		e.TenantID, e.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &accounting.EntryNotFoundError{ID: e.ID}
	}
	return nil
}

func (t *txStore) ReplaceEntryLines(ctx context.Context, tenantID, entryID int64, lines []accounting.JournalLine) ([]accounting.JournalLine, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE tenant_id=? AND id=?`, tenantID, entryID).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &accounting.EntryNotFoundError{ID: entryID}
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM ledger_lines WHERE entry_id=?`, entryID); err != nil {
		return nil, err
	}
	return t.insertLines(ctx, entryID, lines)
}

const entryColumns = `id, tenant_id, number, date, type, description, reference, status, period,
COALESCE(source_module, ''), COALESCE(source_id, ''), reversal_of, reversed_by, created_by, approved_by, approved_at,
void_reason, created_at, updated_at`

func scanEntry(row scanner) (accounting.JournalEntry, error) {
	var (
		e                                accounting.JournalEntry
		date, typ, status, src           string
		reversalOf, reversedBy, approver sql.NullInt64
		approvedAt                       sql.NullString
		created, updated                 string
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &date, &typ, &e.Description, &e.Reference, &status, &e.Period,
		&e.SourceModule, &src, &reversalOf, &reversedBy, &e.CreatedBy, &approver, &approvedAt,
		&e.VoidReason, &created, &updated)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	e.Type = accounting.EntryType(typ)
	e.Status = accounting.EntryStatus(status)
	e.ReversalOf = ptrInt(reversalOf)
	e.ReversedBy = ptrInt(reversedBy)
	e.ApprovedBy = ptrInt(approver)
	if e.Date, err = time.Parse(dateLayout, date); err != nil {
		return accounting.JournalEntry{}, err
	}
	if src != "" {
		if e.SourceID, err = uuid.Parse(src); err != nil {
			return accounting.JournalEntry{}, fmt.Errorf("sqlite: entry %d source id: %w", e.ID, err)
		}
	}
	if e.ApprovedAt, err = parseNullTS(approvedAt); err != nil {
		return accounting.JournalEntry{}, err
	}
	if e.CreatedAt, err = parseTS(created); err != nil {
		return accounting.JournalEntry{}, err
	}
	if e.UpdatedAt, err = parseTS(updated); err != nil {
		return accounting.JournalEntry{}, err
	}
	return e, nil
}

func parseAmounts(debit, credit string) (decimal.Decimal, decimal.Decimal, error) {
	d, err := decimal.NewFromString(debit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	c, err := decimal.NewFromString(credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return d, c, nil
}

func (t *txStore) entryLines(ctx context.Context, entryID int64) ([]accounting.JournalLine, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, entry_id, account_id, position, debit, credit, description, third_party_ref
FROM ledger_lines WHERE entry_id=? ORDER BY position, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []accounting.JournalLine
	for rows.Next() {
		var (
			line          accounting.JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Position, &debit, &credit, &line.Description, &line.ThirdPartyRef); err != nil {
			return nil, err
		}
		if line.Debit, line.Credit, err = parseAmounts(debit, credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txStore) loadEntry(ctx context.Context, row *sql.Row, notFound error) (accounting.JournalEntry, error) {
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accounting.JournalEntry{}, notFound
	}
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if e.Lines, err = t.entryLines(ctx, e.ID); err != nil {
		return accounting.JournalEntry{}, err
	}
	return e, nil
}

func (t *txStore) GetEntry(ctx context.Context, tenantID, entryID int64) (accounting.JournalEntry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=? AND id=?`, tenantID, entryID)
	return t.loadEntry(ctx, row, &accounting.EntryNotFoundError{ID: entryID})
}

func (t *txStore) FindEntryBySource(ctx context.Context, tenantID int64, module string, sourceID uuid.UUID) (accounting.JournalEntry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE tenant_id=? AND source_module=? AND source_id=?`, tenantID, module, sourceID.String())
	return t.loadEntry(ctx, row, fmt.Errorf("%w: source %s/%s", accounting.ErrJournalNotFound, module, sourceID))
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, arg)
}

func (w *where) sql() string { return strings.Join(w.clauses, " AND ") }

func (w *where) page(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = -1
	}
	w.args = append(w.args, limit, offset)
	return ` LIMIT ? OFFSET ?`
}

func (t *txStore) ListEntries(ctx context.Context, tenantID int64, filter accounting.EntryFilter) ([]accounting.JournalEntry, error) {
	w := &where{}
	w.add("tenant_id=?", tenantID)
	if filter.Status != "" {
		w.add("status=?", string(filter.Status))
	}
	if filter.Period != "" {
		w.add("period=?", filter.Period)
	}
	if filter.From != nil {
		w.add("date>=?", formatDate(accounting.DateOnly(*filter.From)))
	}
	if filter.To != nil {
		w.add("date<=?", formatDate(accounting.DateOnly(*filter.To)))
	}
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + w.sql() +
		` ORDER BY date DESC, number DESC` + w.page(filter.Limit, filter.Offset)
	rows, err := t.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *txStore) CountDrafts(ctx context.Context, tenantID int64, period string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE tenant_id=? AND period=? AND status='DRAFT'`, tenantID, period).Scan(&n)
	return n, err
}

// ApprovedTotals sums in Go: SQLite arithmetic on TEXT amounts would go
// through floating point.
func (t *txStore) ApprovedTotals(ctx context.Context, tenantID, accountID int64, through time.Time) (map[int64]accounting.AccountTotals, error) {
	lines, err := t.ListApprovedLines(ctx, tenantID, accountID, nil, &through)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]accounting.AccountTotals)
	for _, l := range lines {
		tot, ok := out[l.AccountID]
		if !ok {
			tot = accounting.AccountTotals{AccountID: l.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
		}
		tot.Debit = tot.Debit.Add(l.Debit)
		tot.Credit = tot.Credit.Add(l.Credit)
		out[l.AccountID] = tot
	}
	return out, nil
}

func (t *txStore) ListApprovedLines(ctx context.Context, tenantID, accountID int64, from, to *time.Time) ([]accounting.PostedLine, error) {
	w := &where{}
	w.add("e.tenant_id=?", tenantID)
	w.add("e.status=?", string(accounting.EntryStatusApproved))
	if accountID != 0 {
		w.add("l.account_id=?", accountID)
	}
	if from != nil {
		w.add("e.date>=?", formatDate(*from))
	}
	if to != nil {
		w.add("e.date<=?", formatDate(*to))
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT e.id, e.number, e.type, e.date, e.reference, l.account_id, l.position,
COALESCE(NULLIF(l.description, ''), e.description), l.debit, l.credit
FROM ledger_lines l JOIN ledger_entries e ON e.id = l.entry_id
WHERE `+w.sql()+` ORDER BY e.date, e.number, l.position`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.PostedLine
	for rows.Next() {
		var (
			p             accounting.PostedLine
			typ, date     string
			debit, credit string
		)
		if err := rows.Scan(&p.EntryID, &p.EntryNumber, &typ, &date, &p.Reference, &p.AccountID, &p.Position, &p.Description, &debit, &credit); err != nil {
			return nil, err
		}
		p.EntryType = accounting.EntryType(typ)
		if p.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		if p.Debit, p.Credit, err = parseAmounts(debit, credit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const periodColumns = `tenant_id, year, month, is_closed, closed_at, closed_by, reopened_at, reopened_by, updated_at`

func scanPeriod(row scanner) (accounting.Period, error) {
	var (
		p                    accounting.Period
		closedAt, reopenedAt sql.NullString
		closedBy, reopenedBy sql.NullInt64
		updated              string
	)
	if err := row.Scan(&p.TenantID, &p.Year, &p.Month, &p.IsClosed, &closedAt, &closedBy, &reopenedAt, &reopenedBy, &updated); err != nil {
		return accounting.Period{}, err
	}
	p.ClosedBy = ptrInt(closedBy)
	p.ReopenedBy = ptrInt(reopenedBy)
	var err error
	if p.ClosedAt, err = parseNullTS(closedAt); err != nil {
		return accounting.Period{}, err
	}
	if p.ReopenedAt, err = parseNullTS(reopenedAt); err != nil {
		return accounting.Period{}, err
	}
	if p.UpdatedAt, err = parseTS(updated); err != nil {
		return accounting.Period{}, err
	}
	return p, nil
}

func (t *txStore) GetPeriod(ctx context.Context, tenantID int64, year, month int) (accounting.Period, error) {
	p, err := scanPeriod(t.tx.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM ledger_periods
WHERE tenant_id=? AND year=? AND month=?`, tenantID, year, month))
	if errors.Is(err, sql.ErrNoRows) {
		return accounting.Period{}, accounting.ErrPeriodNotFound
	}
	return p, err
}

func (t *txStore) UpsertPeriod(ctx context.Context, p accounting.Period) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_periods (`+periodColumns+`)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT (tenant_id, year, month) DO UPDATE SET
    is_closed=excluded.is_closed, closed_at=excluded.closed_at, closed_by=excluded.closed_by,
    reopened_at=excluded.reopened_at, reopened_by=excluded.reopened_by, updated_at=excluded.updated_at`,
		p.TenantID, p.Year, p.Month, p.IsClosed, nullTS(p.ClosedAt), nullInt(p.ClosedBy),
		nullTS(p.ReopenedAt), nullInt(p.ReopenedBy), formatTS(p.UpdatedAt))
	return err
}

func (t *txStore) ListPeriods(ctx context.Context, tenantID int64) ([]accounting.Period, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+periodColumns+` FROM ledger_periods WHERE tenant_id=? ORDER BY year, month`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txStore) InsertAudit(ctx context.Context, e accounting.AuditEntry) (accounting.AuditEntry, error) {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_audit (tenant_id, entity_type, entity_id, action, actor_id, at, payload)
VALUES (?,?,?,?,?,?,?)`,
		e.TenantID, string(e.EntityType), e.EntityID, string(e.Action), e.ActorID, formatTS(e.At), payload)
	if err != nil {
		return accounting.AuditEntry{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return accounting.AuditEntry{}, err
	}
	return e, nil
}

func (t *txStore) ListAudit(ctx context.Context, tenantID int64, filter accounting.AuditFilter) ([]accounting.AuditEntry, error) {
	w := &where{}
	w.add("tenant_id=?", tenantID)
	if filter.EntityType != "" {
		w.add("entity_type=?", string(filter.EntityType))
	}
	if filter.EntityID != "" {
		w.add("entity_id=?", filter.EntityID)
	}
	if filter.Action != "" {
		w.add("action=?", string(filter.Action))
	}
	if filter.ActorID != 0 {
		w.add("actor_id=?", filter.ActorID)
	}
	if !filter.From.IsZero() {
		w.add("at>=?", formatTS(filter.From))
	}
	if !filter.To.IsZero() {
		w.add("at<=?", formatTS(filter.To))
	}
	query := `SELECT id, tenant_id, entity_type, entity_id, action, actor_id, at, payload
FROM ledger_audit WHERE ` + w.sql() + ` ORDER BY at DESC, id DESC` + w.page(filter.Limit, filter.Offset)
	rows, err := t.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.AuditEntry
	for rows.Next() {
		var (
			e                  accounting.AuditEntry
			entity, action, at string
			payload            sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &entity, &e.EntityID, &action, &e.ActorID, &at, &payload); err != nil {
			return nil, err
		}
		e.EntityType = accounting.AuditEntityType(entity)
		e.Action = accounting.AuditAction(action)
		if e.At, err = parseTS(at); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
