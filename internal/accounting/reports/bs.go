package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// StatementLine is one account inside a statement section.
type StatementLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// StatementSection groups lines for one classification.
type StatementSection struct {
	Label string          `json:"label"`
	Lines []StatementLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func newSection(label string) StatementSection {
	return StatementSection{Label: label, Total: decimal.Zero}
}

func (s *StatementSection) add(row accounting.TrialBalanceRow, amount decimal.Decimal) {
	s.Lines = append(s.Lines, StatementLine{Code: row.Code, Name: row.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

// BalanceSheet presents assets against liabilities and equity. Income and
// expense accounts that have not been closed to equity show up as
// CurrentEarnings.
type BalanceSheet struct {
	AsOf                      time.Time        `json:"as_of"`
	Assets                    StatementSection `json:"assets"`
	Liabilities               StatementSection `json:"liabilities"`
	Equity                    StatementSection `json:"equity"`
	CurrentEarnings           decimal.Decimal  `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal  `json:"total_liabilities_and_equity"`
	Difference                decimal.Decimal  `json:"difference"`
}

// BuildBalanceSheet classifies tb rows by account type. Asset amounts are
// debit minus credit; liability and equity amounts are credit minus debit.
func BuildBalanceSheet(tb accounting.TrialBalance) BalanceSheet {
	bs := BalanceSheet{
		AsOf:            tb.AsOf,
		Assets:          newSection("Assets"),
		Liabilities:     newSection("Liabilities"),
		Equity:          newSection("Equity"),
		CurrentEarnings: decimal.Zero,
	}
	for _, row := range tb.Accounts {
		switch row.Type {
		case accounting.AccountTypeAsset:
			bs.Assets.add(row, row.Balance)
		case accounting.AccountTypeLiability:
			bs.Liabilities.add(row, row.Balance.Neg())
		case accounting.AccountTypeEquity:
			bs.Equity.add(row, row.Balance.Neg())
		case accounting.AccountTypeIncome, accounting.AccountTypeExpense, accounting.AccountTypeCostOfSales:
			bs.CurrentEarnings = bs.CurrentEarnings.Sub(row.Balance)
		}
	}
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total).Add(bs.CurrentEarnings)
	bs.Difference = bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity)
	return bs
}
