package accounting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit beyond the configured epsilon.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines on approval.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidEntry indicates a malformed journal header.
	ErrInvalidEntry = errors.New("accounting: invalid journal entry")
	// ErrInvalidLine indicates a malformed journal line.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrAlreadyReversed indicates the entry already has a contra entry.
	ErrAlreadyReversed = errors.New("accounting: journal entry already reversed")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")

	ErrAccountNotFound      = errors.New("accounting: account not found")
	ErrInactiveAccount      = errors.New("accounting: account is inactive")
	ErrInvalidAccountCode   = errors.New("accounting: invalid account code")
	ErrDuplicateAccountCode = errors.New("accounting: duplicate account code")
	ErrOrphanAccount        = errors.New("accounting: account parent missing")
	ErrInvalidTemplate      = errors.New("accounting: invalid chart template")

	// ErrInvalidPeriod indicates an impossible year or month.
	ErrInvalidPeriod       = errors.New("accounting: invalid period")
	ErrPeriodNotFound      = errors.New("accounting: period not found")
	ErrPeriodLocked        = errors.New("accounting: period locked")
	ErrPeriodAlreadyClosed = errors.New("accounting: period already closed")
	ErrPeriodNotClosed     = errors.New("accounting: period not closed")
	ErrOpenDraftsExist     = errors.New("accounting: period has draft entries")
)

// UnbalancedEntryError carries the totals of an entry that failed approval.
type UnbalancedEntryError struct {
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	Difference decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance (debit %s, credit %s, difference %s)",
		e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Difference.StringFixed(2))
}

func (e *UnbalancedEntryError) Is(target error) bool { return target == ErrUnbalanced }

// PeriodClosedError reports a write into a closed period.
type PeriodClosedError struct {
	Period string
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("accounting: period %s is closed", e.Period)
}

func (e *PeriodClosedError) Is(target error) bool { return target == ErrPeriodLocked }

type PeriodAlreadyClosedError struct {
	Period string
}

func (e *PeriodAlreadyClosedError) Error() string {
	return fmt.Sprintf("accounting: period %s already closed", e.Period)
}

func (e *PeriodAlreadyClosedError) Is(target error) bool { return target == ErrPeriodAlreadyClosed }

type PeriodNotClosedError struct {
	Period string
}

func (e *PeriodNotClosedError) Error() string {
	return fmt.Sprintf("accounting: period %s is not closed", e.Period)
}

func (e *PeriodNotClosedError) Is(target error) bool { return target == ErrPeriodNotClosed }

// OpenDraftsExistError blocks closing a period that still has drafts.
type OpenDraftsExistError struct {
	Period string
	Count  int
}

func (e *OpenDraftsExistError) Error() string {
	return fmt.Sprintf("accounting: period %s has %d draft entries", e.Period, e.Count)
}

func (e *OpenDraftsExistError) Is(target error) bool { return target == ErrOpenDraftsExist }

// OrphanAccountError reports a non-root account whose parent code is absent.
type OrphanAccountError struct {
	Code       string
	ParentCode string
}

func (e *OrphanAccountError) Error() string {
	return fmt.Sprintf("accounting: account %s has no parent %s", e.Code, e.ParentCode)
}

func (e *OrphanAccountError) Is(target error) bool { return target == ErrOrphanAccount }

type EntryNotFoundError struct {
	ID int64
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("accounting: journal entry %d not found", e.ID)
}

func (e *EntryNotFoundError) Is(target error) bool { return target == ErrJournalNotFound }

// AccountNotFoundError identifies the missing account by id or code.
type AccountNotFoundError struct {
	ID   int64
	Code string
}

func (e *AccountNotFoundError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("accounting: account %s not found", e.Code)
	}
	return fmt.Sprintf("accounting: account %d not found", e.ID)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJournalNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPeriodNotFound)
}

// IsConflict reports whether err is a state conflict rather than bad input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrSourceAlreadyLinked) ||
		errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrPeriodAlreadyClosed) ||
		errors.Is(err, ErrPeriodNotClosed) ||
		errors.Is(err, ErrOpenDraftsExist) ||
		errors.Is(err, ErrDuplicateAccountCode)
}

// IsUnprocessable reports whether err is well-formed input the ledger refuses.
func IsUnprocessable(err error) bool {
	return errors.Is(err, ErrUnbalanced) ||
		errors.Is(err, ErrTooFewLines) ||
		errors.Is(err, ErrInactiveAccount) ||
		errors.Is(err, ErrOrphanAccount)
}

// IsBadInput reports whether err stems from malformed input.
func IsBadInput(err error) bool {
	return errors.Is(err, ErrInvalidEntry) ||
		errors.Is(err, ErrInvalidLine) ||
		errors.Is(err, ErrInvalidAccountCode) ||
		errors.Is(err, ErrInvalidTemplate) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsValidation reports whether err is a deterministic ledger failure that a retry
// cannot fix. Storage errors return false.
func IsValidation(err error) bool {
	return IsNotFound(err) || IsConflict(err) || IsUnprocessable(err) || IsBadInput(err)
}
