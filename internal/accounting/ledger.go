package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Movement is one approved line with the running balance after it.
type Movement struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber int64           `json:"entry_number"`
	EntryType   EntryType       `json:"entry_type"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	Position    int             `json:"position"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountLedger is the replayed history of one account over a date range.
type AccountLedger struct {
	AccountID      int64           `json:"account_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Nature         Nature          `json:"nature"`
	Start          *time.Time      `json:"start,omitempty"`
	End            *time.Time      `json:"end,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Movements      []Movement      `json:"movements"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
}

// GeneralLedgerFilter narrows GeneralLedger. AccountID 0 selects every active
// account.
type GeneralLedgerFilter struct {
	AccountID int64
	Start     *time.Time
	End       *time.Time
}

// Replay folds lines into movements with running balances starting from
// initial. Lines must already be ordered.
func Replay(initial decimal.Decimal, lines []PostedLine) (movements []Movement, final, debit, credit decimal.Decimal) {
	running := initial
	debit, credit = decimal.Zero, decimal.Zero
	movements = make([]Movement, 0, len(lines))
	for _, line := range lines {
		running = running.Add(line.Debit).Sub(line.Credit)
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
		movements = append(movements, Movement{
			EntryID:     line.EntryID,
			EntryNumber: line.EntryNumber,
			EntryType:   line.EntryType,
			Date:        line.Date,
			Reference:   line.Reference,
			Description: line.Description,
			Position:    line.Position,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Balance:     running,
		})
	}
	return movements, running, debit, credit
}

func normalizeRange(start, end *time.Time) (*time.Time, *time.Time, error) {
	var s, e *time.Time
	if start != nil {
		v := DateOnly(*start)
		s = &v
	}
	if end != nil {
		v := DateOnly(*end)
		e = &v
	}
	if s != nil && e != nil && e.Before(*s) {
		return nil, nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, e.Format(time.DateOnly), s.Format(time.DateOnly))
	}
	return s, e, nil
}

func initialBalance(ctx context.Context, tx TxRepository, tenantID, accountID int64, start *time.Time) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	if start == nil {
		return out, nil
	}
	totals, err := tx.ApprovedTotals(ctx, tenantID, accountID, start.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	for id, t := range totals {
		out[id] = t.Debit.Sub(t.Credit)
	}
	return out, nil
}

func buildAccountLedger(account Account, start, end *time.Time, initial decimal.Decimal, lines []PostedLine) AccountLedger {
	movements, final, debit, credit := Replay(initial, lines)
	return AccountLedger{
		AccountID:      account.ID,
		Code:           account.Code,
		Name:           account.Name,
		Type:           account.Type,
		Nature:         account.Nature,
		Start:          start,
		End:            end,
		InitialBalance: initial,
		Movements:      movements,
		FinalBalance:   final,
		TotalDebit:     debit,
		TotalCredit:    credit,
	}
}

// AccountMovements replays the approved lines of one account. The initial
// balance covers lines dated strictly before start; movements cover [start, end].
func (s *Service) AccountMovements(ctx context.Context, tenantID, accountID int64, start, end *time.Time) (AccountLedger, error) {
	start, end, err := normalizeRange(start, end)
	if err != nil {
		return AccountLedger{}, err
	}
	var ledger AccountLedger
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		initial, err := initialBalance(ctx, tx, tenantID, accountID, start)
		if err != nil {
			return err
		}
		lines, err := tx.ListApprovedLines(ctx, tenantID, accountID, start, end)
		if err != nil {
			return err
		}
		ledger = buildAccountLedger(account, start, end, initial[accountID], lines)
		return nil
	})
	return ledger, err
}

// GeneralLedger replays one account or every active account, ordered by code.
// Accounts with a zero initial balance and no movements are omitted.
func (s *Service) GeneralLedger(ctx context.Context, tenantID int64, filter GeneralLedgerFilter) ([]AccountLedger, error) {
	start, end, err := normalizeRange(filter.Start, filter.End)
	if err != nil {
		return nil, err
	}
	var out []AccountLedger
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var accounts []Account
		if filter.AccountID != 0 {
			account, err := tx.GetAccount(ctx, tenantID, filter.AccountID)
			if err != nil {
				return err
			}
			accounts = []Account{account}
		} else {
			var err error
			accounts, err = tx.ListAccounts(ctx, tenantID, true)
			if err != nil {
				return err
			}
		}
		initial, err := initialBalance(ctx, tx, tenantID, filter.AccountID, start)
		if err != nil {
			return err
		}
		lines, err := tx.ListApprovedLines(ctx, tenantID, filter.AccountID, start, end)
		if err != nil {
			return err
		}
		byAccount := make(map[int64][]PostedLine)
		for _, line := range lines {
			byAccount[line.AccountID] = append(byAccount[line.AccountID], line)
		}
		for _, account := range accounts {
			opening := initial[account.ID]
			accountLines := byAccount[account.ID]
			if opening.IsZero() && len(accountLines) == 0 {
				continue
			}
			out = append(out, buildAccountLedger(account, start, end, opening, accountLines))
		}
		return nil
	})
	return out, err
}
