package accounting

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

//go:embed schema.sql
var schemaSQL string

const pgUniqueViolation = "23505"

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the ledger tables when missing. The two-key advisory lock
// lives in a separate key space from the per-tenant locks and serializes an
// API server and a worker starting together.
func (r *Repository) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('odyssey_ledger_migrate'), 0)`); err != nil {
			return fmt.Errorf("accounting: migrate lock: %w", err)
		}
		if _, err := tx.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("accounting: migrate: %w", err)
		}
		return nil
	})
}

// WithTx executes fn within a read-committed transaction. Writers serialize on
// the tenant advisory lock, so every statement after LockTenant sees the
// commits of the writer that held it before.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

func (r *pgTx) LockTenant(ctx context.Context, tenantID int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, tenantID)
	return err
}

func (r *pgTx) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT tenant_id FROM ledger_accounts ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *pgTx) CountAccounts(ctx context.Context, tenantID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_accounts WHERE tenant_id=$1`, tenantID).Scan(&n)
	return n, err
}

func tagStrings(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

func (r *pgTx) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_accounts (tenant_id, code, name, type, nature, level, parent_id, tags, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		a.TenantID, a.Code, a.Name, string(a.Type), string(a.Nature), a.Level, a.ParentID, tagStrings(a.Tags), a.IsActive, a.CreatedAt, a.UpdatedAt).
		Scan(&a.ID)
	if err != nil {
		if uniqueViolation(err, "uq_ledger_accounts_code") {
			return Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccountCode, a.Code)
		}
		return Account{}, err
	}
	return a, nil
}

const accountColumns = `id, tenant_id, code, name, type, nature, level, parent_id, tags, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a        Account
		typ, nat string
		tags     []string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &typ, &nat, &a.Level, &a.ParentID, &tags, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.Type = AccountType(typ)
	a.Nature = Nature(nat)
	a.ParentCode = ParentCode(a.Code)
	for _, t := range tags {
		a.Tags = append(a.Tags, Tag(t))
	}
	return a, nil
}

func (r *pgTx) ListAccounts(ctx context.Context, tenantID int64, activeOnly bool) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts
WHERE tenant_id=$1 AND (is_active OR NOT $2) ORDER BY code`, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *pgTx) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND id=$2`, tenantID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, &AccountNotFoundError{ID: accountID}
	}
	return a, err
}

func (r *pgTx) GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, &AccountNotFoundError{Code: code}
	}
	return a, err
}

func (r *pgTx) SetAccountActive(ctx context.Context, tenantID, accountID int64, active bool, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET is_active=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, active, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &AccountNotFoundError{ID: accountID}
	}
	return nil
}

func (r *pgTx) NextEntryNumber(ctx context.Context, tenantID int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM ledger_entries WHERE tenant_id=$1`, tenantID).Scan(&n)
	return n, err
}

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sourceArgs(e JournalEntry) (any, any) {
	if e.SourceModule == "" {
		return nil, nil
	}
	return e.SourceModule, e.SourceID.String()
}

func (r *pgTx) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	module, source := sourceArgs(e)
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, number, date, type, description, reference, status, period,
source_module, source_id, reversal_of, reversed_by, created_by, approved_by, approved_at, void_reason, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::uuid,$11,$12,$13,$14,$15,$16,$17,$18) RETURNING id`,
		e.TenantID, e.Number, e.Date, string(e.Type), e.Description, e.Reference, string(e.Status), e.Period,
		module, source, e.ReversalOf, e.ReversedBy, e.CreatedBy, e.ApprovedBy, e.ApprovedAt, e.VoidReason, e.CreatedAt, e.UpdatedAt).
		Scan(&e.ID)
	if err != nil {
		if uniqueViolation(err, "uq_ledger_entries_source") {
			return JournalEntry{}, ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	lines, err := r.insertLines(ctx, e.ID, e.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Lines = lines
	return e, nil
}

func (r *pgTx) insertLines(ctx context.Context, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	out := make([]JournalLine, len(lines))
	for i, line := range lines {
		line.EntryID = entryID
		if line.Position == 0 {
			line.Position = i + 1
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO ledger_lines (entry_id, account_id, position, debit, credit, description, third_party_ref)
VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7) RETURNING id`,
			entryID, line.AccountID, line.Position, line.Debit.String(), line.Credit.String(), line.Description, line.ThirdPartyRef).
			Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (r *pgTx) UpdateEntryHeader(ctx context.Context, e JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET date=$3, type=$4, description=$5, reference=$6, status=$7, period=$8,
reversed_by=$9, approved_by=$10, approved_at=$11, void_reason=$12, updated_at=$13
WHERE tenant_id=$1 AND id=$2`,
		e.TenantID, e.ID, e.Date, string(e.Type), e.Description, e.Reference, string(e.Status), e.Period,
		e.ReversedBy, e.ApprovedBy, e.ApprovedAt, e.VoidReason, e.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return &EntryNotFoundError{ID: e.ID}
	}
	return nil
}

func (r *pgTx) ReplaceEntryLines(ctx context.Context, tenantID, entryID int64, lines []JournalLine) ([]JournalLine, error) {
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE tenant_id=$1 AND id=$2)`, tenantID, entryID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, &EntryNotFoundError{ID: entryID}
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_lines WHERE entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	return r.insertLines(ctx, entryID, lines)
}

const entryColumns = `id, tenant_id, number, date, type, description, reference, status, period,
COALESCE(source_module, ''), COALESCE(source_id::text, ''), reversal_of, reversed_by, created_by, approved_by, approved_at,
void_reason, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e                JournalEntry
		typ, status, src string
	)
	err := row.Scan(&e.ID, &e.TenantID, &e.Number, &e.Date, &typ, &e.Description, &e.Reference, &status, &e.Period,
		&e.SourceModule, &src, &e.ReversalOf, &e.ReversedBy, &e.CreatedBy, &e.ApprovedBy, &e.ApprovedAt,
		&e.VoidReason, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Type = EntryType(typ)
	e.Status = EntryStatus(status)
	if src != "" {
		if e.SourceID, err = uuid.Parse(src); err != nil {
			return JournalEntry{}, fmt.Errorf("accounting: entry %d source id: %w", e.ID, err)
		}
	}
	return e, nil
}

func (r *pgTx) entryLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, position, debit::text, credit::text, description, third_party_ref
FROM ledger_lines WHERE entry_id=$1 ORDER BY position, id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Position, &debit, &credit, &line.Description, &line.ThirdPartyRef); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *pgTx) loadEntry(ctx context.Context, row pgx.Row, notFound error) (JournalEntry, error) {
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, notFound
	}
	if err != nil {
		return JournalEntry{}, err
	}
	if e.Lines, err = r.entryLines(ctx, e.ID); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

func (r *pgTx) GetEntry(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID)
	return r.loadEntry(ctx, row, &EntryNotFoundError{ID: entryID})
}

func (r *pgTx) FindEntryBySource(ctx context.Context, tenantID int64, module string, sourceID uuid.UUID) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE tenant_id=$1 AND source_module=$2 AND source_id=$3::uuid`, tenantID, module, sourceID.String())
	return r.loadEntry(ctx, row, fmt.Errorf("%w: source %s/%s", ErrJournalNotFound, module, sourceID))
}

// where accumulates positional filter clauses.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) sql() string { return strings.Join(w.clauses, " AND ") }

func (w *where) page(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		w.args = append(w.args, limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(w.args)))
	}
	if offset > 0 {
		w.args = append(w.args, offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(w.args)))
	}
	return b.String()
}

func (r *pgTx) ListEntries(ctx context.Context, tenantID int64, filter EntryFilter) ([]JournalEntry, error) {
	w := &where{}
	w.add("tenant_id=?", tenantID)
	if filter.Status != "" {
		w.add("status=?", string(filter.Status))
	}
	if filter.Period != "" {
		w.add("period=?", filter.Period)
	}
	if filter.From != nil {
		w.add("date>=?", DateOnly(*filter.From))
	}
	if filter.To != nil {
		w.add("date<=?", DateOnly(*filter.To))
	}
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + w.sql() +
		` ORDER BY date DESC, number DESC` + w.page(filter.Limit, filter.Offset)
	rows, err := r.tx.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgTx) CountDrafts(ctx context.Context, tenantID int64, period string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE tenant_id=$1 AND period=$2 AND status='DRAFT'`, tenantID, period).Scan(&n)
	return n, err
}

func (r *pgTx) ApprovedTotals(ctx context.Context, tenantID, accountID int64, through time.Time) (map[int64]AccountTotals, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.account_id, SUM(l.debit)::text, SUM(l.credit)::text
FROM ledger_lines l JOIN ledger_entries e ON e.id = l.entry_id
WHERE e.tenant_id=$1 AND e.status='APPROVED' AND e.date <= $2 AND ($3::bigint = 0 OR l.account_id = $3::bigint)
GROUP BY l.account_id`, tenantID, through, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]AccountTotals)
	for rows.Next() {
		var (
			t             AccountTotals
			debit, credit string
		)
		if err := rows.Scan(&t.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		if t.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if t.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out[t.AccountID] = t
	}
	return out, rows.Err()
}

func (r *pgTx) ListApprovedLines(ctx context.Context, tenantID, accountID int64, from, to *time.Time) ([]PostedLine, error) {
	w := &where{}
	w.add("e.tenant_id=?", tenantID)
	w.clauses = append(w.clauses, "e.status='APPROVED'")
	if accountID != 0 {
		w.add("l.account_id=?", accountID)
	}
	if from != nil {
		w.add("e.date>=?", *from)
	}
	if to != nil {
		w.add("e.date<=?", *to)
	}
	rows, err := r.tx.Query(ctx, `SELECT e.id, e.number, e.type, e.date, e.reference, l.account_id, l.position,
COALESCE(NULLIF(l.description, ''), e.description), l.debit::text, l.credit::text
FROM ledger_lines l JOIN ledger_entries e ON e.id = l.entry_id
WHERE `+w.sql()+` ORDER BY e.date, e.number, l.position`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostedLine
	for rows.Next() {
		var (
			p             PostedLine
			typ           string
			debit, credit string
		)
		if err := rows.Scan(&p.EntryID, &p.EntryNumber, &typ, &p.Date, &p.Reference, &p.AccountID, &p.Position, &p.Description, &debit, &credit); err != nil {
			return nil, err
		}
		p.EntryType = EntryType(typ)
		if p.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if p.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const periodColumns = `tenant_id, year, month, is_closed, closed_at, closed_by, reopened_at, reopened_by, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.TenantID, &p.Year, &p.Month, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.ReopenedAt, &p.ReopenedBy, &p.UpdatedAt)
	return p, err
}

// GetPeriod is a plain read. Close and reopen run under the tenant advisory
// lock, so readers never queue behind them.
func (r *pgTx) GetPeriod(ctx context.Context, tenantID int64, year, month int) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM ledger_periods
WHERE tenant_id=$1 AND year=$2 AND month=$3`, tenantID, year, month))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (r *pgTx) UpsertPeriod(ctx context.Context, p Period) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_periods (`+periodColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (tenant_id, year, month) DO UPDATE SET
    is_closed=EXCLUDED.is_closed, closed_at=EXCLUDED.closed_at, closed_by=EXCLUDED.closed_by,
    reopened_at=EXCLUDED.reopened_at, reopened_by=EXCLUDED.reopened_by, updated_at=EXCLUDED.updated_at`,
		p.TenantID, p.Year, p.Month, p.IsClosed, p.ClosedAt, p.ClosedBy, p.ReopenedAt, p.ReopenedBy, p.UpdatedAt)
	return err
}

func (r *pgTx) ListPeriods(ctx context.Context, tenantID int64) ([]Period, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM ledger_periods WHERE tenant_id=$1 ORDER BY year, month`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *pgTx) InsertAudit(ctx context.Context, e AuditEntry) (AuditEntry, error) {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_audit (tenant_id, entity_type, entity_id, action, actor_id, at, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb) RETURNING id`,
		e.TenantID, string(e.EntityType), e.EntityID, string(e.Action), e.ActorID, e.At, payload).Scan(&e.ID)
	if err != nil {
		return AuditEntry{}, err
	}
	return e, nil
}

func (r *pgTx) ListAudit(ctx context.Context, tenantID int64, filter AuditFilter) ([]AuditEntry, error) {
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
		w.add("at>=?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("at<=?", filter.To)
	}
	query := `SELECT id, tenant_id, entity_type, entity_id, action, actor_id, at, COALESCE(payload::text, '')
FROM ledger_audit WHERE ` + w.sql() + ` ORDER BY at DESC, id DESC` + w.page(filter.Limit, filter.Offset)
	rows, err := r.tx.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e              AuditEntry
			entity, action string
			payload        string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &entity, &e.EntityID, &action, &e.ActorID, &e.At, &payload); err != nil {
			return nil, err
		}
		e.EntityType = AuditEntityType(entity)
		e.Action = AuditAction(action)
		if payload != "" {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
