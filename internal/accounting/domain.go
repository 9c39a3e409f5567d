package accounting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset       AccountType = "ASSET"
	AccountTypeLiability   AccountType = "LIABILITY"
	AccountTypeEquity      AccountType = "EQUITY"
	AccountTypeIncome      AccountType = "INCOME"
	AccountTypeExpense     AccountType = "EXPENSE"
	AccountTypeCostOfSales AccountType = "COST_OF_SALES"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeIncome, AccountTypeExpense, AccountTypeCostOfSales:
		return true
	}
	return false
}

// DefaultNature returns the side that increases accounts of this type.
func (t AccountType) DefaultNature() Nature {
	switch t {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCostOfSales:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// Nature tells which side increases an account balance.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// Valid reports whether n is DEBIT or CREDIT.
func (n Nature) Valid() bool {
	return n == NatureDebit || n == NatureCredit
}

// Tag marks accounts for downstream reporting. The ledger stores tags but never
// branches on them.
type Tag string

const (
	TagCash        Tag = "CASH"
	TagBank        Tag = "BANK"
	TagReceivable  Tag = "RECEIVABLE"
	TagPayable     Tag = "PAYABLE"
	TagVAT         Tag = "VAT"
	TagWithholding Tag = "WITHHOLDING"
	TagInventory   Tag = "INVENTORY"
)

// NormalizeTags upper-cases, trims and de-duplicates tags keeping first-seen order.
func NormalizeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		t := Tag(strings.ToUpper(strings.TrimSpace(string(tag))))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Account models a chart of accounts node.
type Account struct {
	ID         int64
	TenantID   int64
	Code       string
	Name       string
	Type       AccountType
	Nature     Nature
	Level      int
	ParentID   *int64
	ParentCode string
	Tags       []Tag
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasTag reports whether the account carries tag.
func (a Account) HasTag(tag Tag) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AccountTemplate is one row of a chart-of-accounts seed template.
type AccountTemplate struct {
	Code   string
	Name   string
	Type   AccountType
	Nature Nature
	Tags   []Tag
}

// SeedResult reports the outcome of seeding a tenant's chart.
type SeedResult struct {
	AlreadyInitialized bool
	Inserted           int
}

// EntryType classifies journal entries.
type EntryType string

const (
	EntryTypeJournal    EntryType = "JOURNAL"
	EntryTypeReceipt    EntryType = "RECEIPT"
	EntryTypePayment    EntryType = "PAYMENT"
	EntryTypeAdjustment EntryType = "ADJUSTMENT"
	EntryTypeOpening    EntryType = "OPENING"
	EntryTypeClosing    EntryType = "CLOSING"
	EntryTypeReversal   EntryType = "REVERSAL"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeJournal, EntryTypeReceipt, EntryTypePayment, EntryTypeAdjustment,
		EntryTypeOpening, EntryTypeClosing, EntryTypeReversal:
		return true
	}
	return false
}

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusApproved EntryStatus = "APPROVED"
	EntryStatusVoid     EntryStatus = "VOID"
)

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusApproved, EntryStatusVoid:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// APPROVED entries never change status; they are neutralised by reversal.
func (s EntryStatus) CanTransition(next EntryStatus) bool {
	switch s {
	case EntryStatusDraft:
		return next == EntryStatusApproved || next == EntryStatusVoid
	case EntryStatusApproved, EntryStatusVoid:
		return false
	}
	return false
}

// JournalEntry captures a journal header and its lines.
type JournalEntry struct {
	ID           int64
	TenantID     int64
	Number       int64
	Date         time.Time
	Type         EntryType
	Description  string
	Reference    string
	Status       EntryStatus
	Period       string
	SourceModule string
	SourceID     uuid.UUID
	ReversalOf   *int64
	ReversedBy   *int64
	CreatedBy    int64
	ApprovedBy   *int64
	ApprovedAt   *time.Time
	VoidReason   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// Totals sums the entry's debit and credit sides.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	return SumLines(e.Lines)
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID            int64
	EntryID       int64
	AccountID     int64
	Position      int
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
	ThirdPartyRef string
}

// Signed returns debit minus credit.
func (l JournalLine) Signed() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// SumLines returns the debit and credit totals of lines.
func SumLines(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// DraftLine describes a line of a candidate journal entry.
type DraftLine struct {
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
	ThirdPartyRef string
}

// EntryDraft groups the fields callers submit to create or edit an entry.
type EntryDraft struct {
	Date         time.Time
	Type         EntryType
	Description  string
	Reference    string
	SourceModule string
	SourceID     uuid.UUID
	Lines        []DraftLine
}

// Validate checks the structure of the draft. Balance is not required: drafts
// may stay unbalanced until approval.
func (d EntryDraft) Validate() error {
	if d.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidEntry)
	}
	if d.Type != "" && !d.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, d.Type)
	}
	if d.Type == EntryTypeReversal {
		return fmt.Errorf("%w: reversal entries are generated by the ledger", ErrInvalidEntry)
	}
	if (d.SourceModule == "") != (d.SourceID == uuid.Nil) {
		return fmt.Errorf("%w: source module and source id go together", ErrInvalidEntry)
	}
	if len(d.Lines) == 0 {
		return fmt.Errorf("%w: at least one line required", ErrInvalidEntry)
	}
	for idx, line := range d.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidLine, idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d has no amount", ErrInvalidLine, idx)
		}
		if !line.Debit.IsZero() && !line.Credit.IsZero() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", ErrInvalidLine, idx)
		}
	}
	return nil
}

// VoidOptions configures VoidEntry and ReverseEntry.
type VoidOptions struct {
	Reason string
	// ReversalDate dates the contra entry of an approved entry. Defaults to the
	// original entry date.
	ReversalDate *time.Time
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	Status EntryStatus
	Period string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Period represents the lock record of a (year, month).
type Period struct {
	TenantID   int64
	Year       int
	Month      int
	IsClosed   bool
	ClosedAt   *time.Time
	ClosedBy   *int64
	ReopenedAt *time.Time
	ReopenedBy *int64
	UpdatedAt  time.Time
}

// Code formats the period as YYYY-MM.
func (p Period) Code() string {
	return PeriodCode(p.Year, p.Month)
}

// PeriodStatusView is the answer to a period status query.
type PeriodStatusView struct {
	Year       int
	Month      int
	Period     string
	IsClosed   bool
	ClosedAt   *time.Time
	ClosedBy   *int64
	DraftCount int
}

// PeriodCode formats year and month as YYYY-MM.
func PeriodCode(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// PeriodOf returns the YYYY-MM period of date.
func PeriodOf(date time.Time) string {
	return PeriodCode(date.Year(), int(date.Month()))
}

// ParsePeriodCode splits YYYY-MM.
func ParsePeriodCode(code string) (int, int, error) {
	t, err := time.Parse("2006-01", code)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, code)
	}
	return t.Year(), int(t.Month()), nil
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AuditEntityType names the kind of entity an audit row refers to.
type AuditEntityType string

const (
	AuditEntityJournalEntry AuditEntityType = "JOURNAL_ENTRY"
	AuditEntityPeriod       AuditEntityType = "PERIOD"
	AuditEntityAccount      AuditEntityType = "ACCOUNT"
	AuditEntityChart        AuditEntityType = "CHART"
)

// AuditAction enumerates mutating actions recorded in the audit log.
type AuditAction string

const (
	AuditEntryCreated       AuditAction = "ENTRY_CREATED"
	AuditEntryUpdated       AuditAction = "ENTRY_UPDATED"
	AuditEntryPosted        AuditAction = "POSTED"
	AuditEntryVoided        AuditAction = "VOIDED"
	AuditEntryReversed      AuditAction = "REVERSED"
	AuditPeriodClosed       AuditAction = "PERIOD_CLOSED"
	AuditPeriodReopened     AuditAction = "PERIOD_REOPENED"
	AuditChartSeeded        AuditAction = "CHART_SEEDED"
	AuditAccountDeactivated AuditAction = "ACCOUNT_DEACTIVATED"
	AuditAccountReactivated AuditAction = "ACCOUNT_REACTIVATED"
)

// AuditEntry is an append-only audit record.
type AuditEntry struct {
	ID         int64
	TenantID   int64
	EntityType AuditEntityType
	EntityID   string
	Action     AuditAction
	ActorID    int64
	At         time.Time
	Payload    json.RawMessage
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	EntityType AuditEntityType
	EntityID   string
	Action     AuditAction
	ActorID    int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
