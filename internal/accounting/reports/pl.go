package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// ProfitAndLoss is the income statement for a date range.
type ProfitAndLoss struct {
	From        *time.Time       `json:"from,omitempty"`
	To          time.Time        `json:"to"`
	Revenue     StatementSection `json:"revenue"`
	CostOfSales StatementSection `json:"cost_of_sales"`
	Expense     StatementSection `json:"expense"`
	GrossProfit decimal.Decimal  `json:"gross_profit"`
	NetIncome   decimal.Decimal  `json:"net_income"`
}

// BuildProfitAndLoss sums result accounts by type. Revenue is credit minus
// debit, costs and expenses debit minus credit.
func BuildProfitAndLoss(rows []accounting.TrialBalanceRow) ProfitAndLoss {
	pl := ProfitAndLoss{
		Revenue:     newSection("Revenue"),
		CostOfSales: newSection("Cost of sales"),
		Expense:     newSection("Expense"),
	}
	for _, row := range rows {
		switch row.Type {
		case accounting.AccountTypeIncome:
			pl.Revenue.add(row, row.Balance.Neg())
		case accounting.AccountTypeCostOfSales:
			pl.CostOfSales.add(row, row.Balance)
		case accounting.AccountTypeExpense:
			pl.Expense.add(row, row.Balance)
		}
	}
	pl.GrossProfit = pl.Revenue.Total.Sub(pl.CostOfSales.Total)
	pl.NetIncome = pl.GrossProfit.Sub(pl.Expense.Total)
	return pl
}

// Activity returns the movement between two cumulative trial balances:
// end minus start, per account. Accounts with no movement are dropped.
func Activity(end, start accounting.TrialBalance) []accounting.TrialBalanceRow {
	before := make(map[int64]accounting.TrialBalanceRow, len(start.Accounts))
	for _, row := range start.Accounts {
		before[row.AccountID] = row
	}
	out := make([]accounting.TrialBalanceRow, 0, len(end.Accounts))
	for _, row := range end.Accounts {
		if prev, ok := before[row.AccountID]; ok {
			row.Debit = row.Debit.Sub(prev.Debit)
			row.Credit = row.Credit.Sub(prev.Credit)
			row.Balance = row.Debit.Sub(row.Credit)
			row.DebitBalance, row.CreditBalance = accounting.SplitBalance(row.Balance)
		}
		if row.Debit.IsZero() && row.Credit.IsZero() {
			continue
		}
		out = append(out, row)
	}
	return out
}
