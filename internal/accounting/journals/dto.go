package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// LineRequest describes a journal line in a create or update request.
type LineRequest struct {
	AccountID     int64           `json:"account_id" validate:"required,gt=0"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Description   string          `json:"description" validate:"max=255"`
	ThirdPartyRef string          `json:"third_party_ref" validate:"max=64"`
}

// EntryRequest is the body of POST /journals and PUT /journals/{id}.
type EntryRequest struct {
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Type         string        `json:"type" validate:"omitempty,oneof=JOURNAL RECEIPT PAYMENT ADJUSTMENT OPENING CLOSING"`
	Description  string        `json:"description" validate:"max=500"`
	Reference    string        `json:"reference" validate:"max=64"`
	SourceModule string        `json:"source_module" validate:"required_with=SourceID,max=64"`
	SourceID     string        `json:"source_id" validate:"omitempty,uuid"`
	Lines        []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Draft converts the request into a ledger draft.
func (req EntryRequest) Draft() (accounting.EntryDraft, error) {
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return accounting.EntryDraft{}, fmt.Errorf("%w: date must be YYYY-MM-DD", accounting.ErrInvalidEntry)
	}
	draft := accounting.EntryDraft{
		Date:         date,
		Type:         accounting.EntryType(strings.ToUpper(req.Type)),
		Description:  req.Description,
		Reference:    req.Reference,
		SourceModule: req.SourceModule,
	}
	if req.SourceID != "" {
		id, err := uuid.Parse(req.SourceID)
		if err != nil {
			return accounting.EntryDraft{}, fmt.Errorf("%w: source_id", accounting.ErrInvalidEntry)
		}
		draft.SourceID = id
	}
	for _, line := range req.Lines {
		draft.Lines = append(draft.Lines, accounting.DraftLine{
			AccountID:     line.AccountID,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   line.Description,
			ThirdPartyRef: line.ThirdPartyRef,
		})
	}
	return draft, nil
}

// VoidRequest is the body of the void and reverse endpoints.
type VoidRequest struct {
	Reason       string `json:"reason" validate:"max=500"`
	ReversalDate string `json:"reversal_date" validate:"omitempty,datetime=2006-01-02"`
}

// Options converts the request into void options.
func (req VoidRequest) Options() accounting.VoidOptions {
	opts := accounting.VoidOptions{Reason: req.Reason}
	if req.ReversalDate != "" {
		if date, err := time.Parse(time.DateOnly, req.ReversalDate); err == nil {
			opts.ReversalDate = &date
		}
	}
	return opts
}

// LineResponse is the JSON view of a journal line.
type LineResponse struct {
	ID            int64           `json:"id"`
	Position      int             `json:"position"`
	AccountID     int64           `json:"account_id"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Description   string          `json:"description,omitempty"`
	ThirdPartyRef string          `json:"third_party_ref,omitempty"`
}

// EntryResponse is the JSON view of a journal entry.
type EntryResponse struct {
	ID           int64          `json:"id"`
	Number       int64          `json:"number"`
	Date         string         `json:"date"`
	Period       string         `json:"period"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Description  string         `json:"description,omitempty"`
	Reference    string         `json:"reference,omitempty"`
	SourceModule string         `json:"source_module,omitempty"`
	SourceID     string         `json:"source_id,omitempty"`
	ReversalOf   *int64         `json:"reversal_of,omitempty"`
	ReversedBy   *int64         `json:"reversed_by,omitempty"`
	CreatedBy    int64          `json:"created_by"`
	ApprovedBy   *int64         `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	VoidReason   string         `json:"void_reason,omitempty"`
	TotalDebit   string         `json:"total_debit"`
	TotalCredit  string         `json:"total_credit"`
	Lines        []LineResponse `json:"lines,omitempty"`
}

// NewEntryResponse maps a ledger entry to its JSON view.
func NewEntryResponse(e accounting.JournalEntry) EntryResponse {
	debit, credit := e.Totals()
	resp := EntryResponse{
		ID:           e.ID,
		Number:       e.Number,
		Date:         e.Date.Format(time.DateOnly),
		Period:       e.Period,
		Type:         string(e.Type),
		Status:       string(e.Status),
		Description:  e.Description,
		Reference:    e.Reference,
		SourceModule: e.SourceModule,
		ReversalOf:   e.ReversalOf,
		ReversedBy:   e.ReversedBy,
		CreatedBy:    e.CreatedBy,
		ApprovedBy:   e.ApprovedBy,
		ApprovedAt:   e.ApprovedAt,
		VoidReason:   e.VoidReason,
		TotalDebit:   debit.StringFixed(2),
		TotalCredit:  credit.StringFixed(2),
	}
	if e.SourceModule != "" {
		resp.SourceID = e.SourceID.String()
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:            line.ID,
			Position:      line.Position,
			AccountID:     line.AccountID,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   line.Description,
			ThirdPartyRef: line.ThirdPartyRef,
		})
	}
	return resp
}
