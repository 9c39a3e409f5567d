package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultBalanceEpsilon is the tolerance used when no epsilon is configured.
var DefaultBalanceEpsilon = decimal.RequireFromString("0.01")

// Service coordinates the chart of accounts, journal entries, period locks and
// the read-side ledger computations.
type Service struct {
	repo      RepositoryPort
	epsilon   decimal.Decimal
	observers []ChangeObserver
	now       func() time.Time
}

// NewService constructs the ledger service. A non-positive epsilon falls back
// to DefaultBalanceEpsilon.
func NewService(repo RepositoryPort, epsilon decimal.Decimal) *Service {
	if !epsilon.IsPositive() {
		epsilon = DefaultBalanceEpsilon
	}
	return &Service{repo: repo, epsilon: epsilon, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AddObserver registers an observer called after every committed mutation.
func (s *Service) AddObserver(o ChangeObserver) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// Epsilon returns the balance tolerance.
func (s *Service) Epsilon() decimal.Decimal { return s.epsilon }

// IsBalanced reports whether |debit - credit| is strictly below epsilon.
func (s *Service) IsBalanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(s.epsilon)
}

func (s *Service) notify(ctx context.Context, tenantID int64, action AuditAction) {
	for _, o := range s.observers {
		o.LedgerChanged(ctx, tenantID, action)
	}
}

func (s *Service) audit(ctx context.Context, tx TxRepository, tenantID, actorID int64, entity AuditEntityType, entityID string, action AuditAction, payload map[string]any) error {
	var raw json.RawMessage
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("accounting: encode audit payload: %w", err)
		}
		raw = b
	}
	_, err := tx.InsertAudit(ctx, AuditEntry{
		TenantID:   tenantID,
		EntityType: entity,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		At:         s.now().UTC(),
		Payload:    raw,
	})
	return err
}

func normalizeDraft(d EntryDraft) EntryDraft {
	d.Date = DateOnly(d.Date)
	if d.Type == "" {
		d.Type = EntryTypeJournal
	}
	d.Description = strings.TrimSpace(d.Description)
	d.Reference = strings.TrimSpace(d.Reference)
	d.SourceModule = strings.TrimSpace(d.SourceModule)
	return d
}

func toJournalLines(lines []DraftLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			AccountID:     line.AccountID,
			Position:      idx + 1,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   strings.TrimSpace(line.Description),
			ThirdPartyRef: strings.TrimSpace(line.ThirdPartyRef),
		})
	}
	return out
}

// checkAccounts verifies every referenced account exists and is active.
func checkAccounts(ctx context.Context, tx TxRepository, tenantID int64, lines []JournalLine) error {
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		account, err := tx.GetAccount(ctx, tenantID, line.AccountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return fmt.Errorf("%w: %s", ErrInactiveAccount, account.Code)
		}
	}
	return nil
}

func entryKey(id int64) string { return strconv.FormatInt(id, 10) }

func entryPayload(entry JournalEntry) map[string]any {
	debit, credit := entry.Totals()
	payload := map[string]any{
		"number": entry.Number,
		"period": entry.Period,
		"type":   entry.Type,
		"debit":  debit.String(),
		"credit": credit.String(),
		"lines":  len(entry.Lines),
	}
	if entry.SourceModule != "" {
		payload["source_module"] = entry.SourceModule
		payload["source_id"] = entry.SourceID.String()
	}
	return payload
}

// CreateEntry validates and stores a DRAFT journal entry. Drafts may be
// unbalanced; the period of the entry date must be open.
func (s *Service) CreateEntry(ctx context.Context, tenantID, actorID int64, draft EntryDraft) (JournalEntry, error) {
	draft = normalizeDraft(draft)
	if err := draft.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		var err error
		entry, err = s.insertDraft(ctx, tx, tenantID, actorID, draft)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, AuditEntryCreated)
	return entry, nil
}

// PostEntry creates and approves an entry in one transaction. When approval
// fails nothing is stored and no entry number is consumed.
func (s *Service) PostEntry(ctx context.Context, tenantID, actorID int64, draft EntryDraft) (JournalEntry, error) {
	draft = normalizeDraft(draft)
	if err := draft.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		created, err := s.insertDraft(ctx, tx, tenantID, actorID, draft)
		if err != nil {
			return err
		}
		entry, err = s.approve(ctx, tx, tenantID, actorID, created)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, AuditEntryCreated)
	s.notify(ctx, tenantID, AuditEntryPosted)
	return entry, nil
}

func (s *Service) insertDraft(ctx context.Context, tx TxRepository, tenantID, actorID int64, draft EntryDraft) (JournalEntry, error) {
	if err := assertOpen(ctx, tx, tenantID, draft.Date); err != nil {
		return JournalEntry{}, err
	}
	if draft.SourceModule != "" {
		_, err := tx.FindEntryBySource(ctx, tenantID, draft.SourceModule, draft.SourceID)
		switch {
		case err == nil:
			return JournalEntry{}, ErrSourceAlreadyLinked
		case !errors.Is(err, ErrJournalNotFound):
			return JournalEntry{}, err
		}
	}
	lines := toJournalLines(draft.Lines)
	if err := checkAccounts(ctx, tx, tenantID, lines); err != nil {
		return JournalEntry{}, err
	}
	number, err := tx.NextEntryNumber(ctx, tenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	now := s.now().UTC()
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		TenantID:     tenantID,
		Number:       number,
		Date:         draft.Date,
		Type:         draft.Type,
		Description:  draft.Description,
		Reference:    draft.Reference,
		Status:       EntryStatusDraft,
		Period:       PeriodOf(draft.Date),
		SourceModule: draft.SourceModule,
		SourceID:     draft.SourceID,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        lines,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := s.audit(ctx, tx, tenantID, actorID, AuditEntityJournalEntry, entryKey(entry.ID), AuditEntryCreated, entryPayload(entry)); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// UpdateEntry replaces the header and lines of a DRAFT entry. Both the current
// and the new period must be open. The source link of the entry never changes.
func (s *Service) UpdateEntry(ctx context.Context, tenantID, actorID, entryID int64, draft EntryDraft) (JournalEntry, error) {
	draft = normalizeDraft(draft)
	if err := draft.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return fmt.Errorf("%w: entry %d is %s", ErrInvalidStatus, current.Number, current.Status)
		}
		if err := assertOpen(ctx, tx, tenantID, current.Date); err != nil {
			return err
		}
		if err := assertOpen(ctx, tx, tenantID, draft.Date); err != nil {
			return err
		}
		lines := toJournalLines(draft.Lines)
		if err := checkAccounts(ctx, tx, tenantID, lines); err != nil {
			return err
		}
		fromPeriod := current.Period
		updated := current
		updated.Date = draft.Date
		updated.Period = PeriodOf(draft.Date)
		updated.Type = draft.Type
		updated.Description = draft.Description
		updated.Reference = draft.Reference
		updated.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEntryHeader(ctx, updated); err != nil {
			return err
		}
		stored, err := tx.ReplaceEntryLines(ctx, tenantID, updated.ID, lines)
		if err != nil {
			return err
		}
		updated.Lines = stored
		entry = updated
		payload := entryPayload(entry)
		if fromPeriod != entry.Period {
			payload["from_period"] = fromPeriod
		}
		return s.audit(ctx, tx, tenantID, actorID, AuditEntityJournalEntry, entryKey(entry.ID), AuditEntryUpdated, payload)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, AuditEntryUpdated)
	return entry, nil
}

// ApproveEntry posts a DRAFT entry. The entry must have at least two lines,
// balance within epsilon and fall in an open period.
func (s *Service) ApproveEntry(ctx context.Context, tenantID, actorID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		entry, err = s.approve(ctx, tx, tenantID, actorID, current)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, AuditEntryPosted)
	return entry, nil
}

func (s *Service) approve(ctx context.Context, tx TxRepository, tenantID, actorID int64, current JournalEntry) (JournalEntry, error) {
	if !current.Status.CanTransition(EntryStatusApproved) {
		return JournalEntry{}, fmt.Errorf("%w: entry %d is %s", ErrInvalidStatus, current.Number, current.Status)
	}
	if err := assertOpen(ctx, tx, tenantID, current.Date); err != nil {
		return JournalEntry{}, err
	}
	if len(current.Lines) < 2 {
		return JournalEntry{}, ErrTooFewLines
	}
	debit, credit := current.Totals()
	if !s.IsBalanced(debit, credit) {
		return JournalEntry{}, &UnbalancedEntryError{Debit: debit, Credit: credit, Difference: debit.Sub(credit)}
	}
	if err := checkAccounts(ctx, tx, tenantID, current.Lines); err != nil {
		return JournalEntry{}, err
	}
	now := s.now().UTC()
	current.Status = EntryStatusApproved
	current.ApprovedBy = &actorID
	current.ApprovedAt = &now
	current.UpdatedAt = now
	if err := tx.UpdateEntryHeader(ctx, current); err != nil {
		return JournalEntry{}, err
	}
	if err := s.audit(ctx, tx, tenantID, actorID, AuditEntityJournalEntry, entryKey(current.ID), AuditEntryPosted, entryPayload(current)); err != nil {
		return JournalEntry{}, err
	}
	return current, nil
}

// VoidEntry voids a DRAFT entry in place. An APPROVED entry is neutralised by a
// contra entry instead; the returned entry is then the reversal.
func (s *Service) VoidEntry(ctx context.Context, tenantID, actorID, entryID int64, opts VoidOptions) (JournalEntry, error) {
	var (
		entry  JournalEntry
		action AuditAction
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		switch current.Status {
		case EntryStatusDraft:
			if err := assertOpen(ctx, tx, tenantID, current.Date); err != nil {
				return err
			}
			now := s.now().UTC()
			current.Status = EntryStatusVoid
			current.VoidReason = strings.TrimSpace(opts.Reason)
			current.UpdatedAt = now
			if err := tx.UpdateEntryHeader(ctx, current); err != nil {
				return err
			}
			entry = current
			action = AuditEntryVoided
			return s.audit(ctx, tx, tenantID, actorID, AuditEntityJournalEntry, entryKey(entry.ID), AuditEntryVoided, map[string]any{
				"number": entry.Number,
				"reason": entry.VoidReason,
			})
		case EntryStatusApproved:
			reversal, err := s.reverse(ctx, tx, actorID, current, opts)
			if err != nil {
				return err
			}
			entry = reversal
			action = AuditEntryReversed
			return nil
		case EntryStatusVoid:
			return fmt.Errorf("%w: entry %d is already void", ErrInvalidStatus, current.Number)
		default:
			return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, current.Status)
		}
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, action)
	return entry, nil
}

// ReverseEntry books an APPROVED contra entry for an APPROVED entry.
func (s *Service) ReverseEntry(ctx context.Context, tenantID, actorID, entryID int64, opts VoidOptions) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusApproved {
			return fmt.Errorf("%w: only approved entries can be reversed", ErrInvalidStatus)
		}
		entry, err = s.reverse(ctx, tx, actorID, current, opts)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.notify(ctx, tenantID, AuditEntryReversed)
	return entry, nil
}

func (s *Service) reverse(ctx context.Context, tx TxRepository, actorID int64, original JournalEntry, opts VoidOptions) (JournalEntry, error) {
	if original.ReversedBy != nil {
		return JournalEntry{}, ErrAlreadyReversed
	}
	if original.Type == EntryTypeReversal {
		return JournalEntry{}, fmt.Errorf("%w: reversal entries cannot be reversed", ErrInvalidStatus)
	}
	date := original.Date
	if opts.ReversalDate != nil {
		date = DateOnly(*opts.ReversalDate)
	}
	if err := assertOpen(ctx, tx, original.TenantID, date); err != nil {
		return JournalEntry{}, err
	}
	number, err := tx.NextEntryNumber(ctx, original.TenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	now := s.now().UTC()
	originalID := original.ID
	reason := strings.TrimSpace(opts.Reason)
	reversal, err := tx.InsertEntry(ctx, JournalEntry{
		TenantID:    original.TenantID,
		Number:      number,
		Date:        date,
		Type:        EntryTypeReversal,
		Description: defaultReversalDescription(original, reason),
		Reference:   original.Reference,
		Status:      EntryStatusApproved,
		Period:      PeriodOf(date),
		ReversalOf:  &originalID,
		CreatedBy:   actorID,
		ApprovedBy:  &actorID,
		ApprovedAt:  &now,
		VoidReason:  reason,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines:       reverseLines(original.Lines),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	reversalID := reversal.ID
	original.ReversedBy = &reversalID
	original.UpdatedAt = now
	if err := tx.UpdateEntryHeader(ctx, original); err != nil {
		return JournalEntry{}, err
	}
	payload := map[string]any{
		"number":          original.Number,
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
		"reason":          reason,
	}
	if err := s.audit(ctx, tx, original.TenantID, actorID, AuditEntityJournalEntry, entryKey(original.ID), AuditEntryReversed, payload); err != nil {
		return JournalEntry{}, err
	}
	payload = entryPayload(reversal)
	payload["reversal_of"] = original.ID
	if err := s.audit(ctx, tx, original.TenantID, actorID, AuditEntityJournalEntry, entryKey(reversal.ID), AuditEntryPosted, payload); err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

func reverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			AccountID:     line.AccountID,
			Position:      line.Position,
			Debit:         line.Credit,
			Credit:        line.Debit,
			Description:   line.Description,
			ThirdPartyRef: line.ThirdPartyRef,
		})
	}
	return out
}

func defaultReversalDescription(original JournalEntry, reason string) string {
	desc := fmt.Sprintf("Reversal of entry %d", original.Number)
	if reason != "" {
		desc += ": " + reason
	}
	return desc
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, tenantID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntry(ctx, tenantID, entryID)
		return err
	})
	return entry, err
}

// FindEntryBySource resolves the entry linked to an upstream document.
func (s *Service) FindEntryBySource(ctx context.Context, tenantID int64, module string, sourceID uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.FindEntryBySource(ctx, tenantID, module, sourceID)
		return err
	})
	return entry, err
}

// ListEntries returns entry headers newest first.
func (s *Service) ListEntries(ctx context.Context, tenantID int64, filter EntryFilter) ([]JournalEntry, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, filter.Status)
	}
	if filter.Period != "" {
		if _, _, err := ParsePeriodCode(filter.Period); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntries(ctx, tenantID, filter)
		return err
	})
	return entries, err
}
