// Package reports shapes ledger read models into presentation reports and
// serves them through a versioned cache.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// TrialBalanceGroup rolls the rows of every account below one ancestor.
type TrialBalanceGroup struct {
	Code          string                       `json:"code"`
	Name          string                       `json:"name"`
	Level         int                          `json:"level"`
	Debit         decimal.Decimal              `json:"debit"`
	Credit        decimal.Decimal              `json:"credit"`
	DebitBalance  decimal.Decimal              `json:"debit_balance"`
	CreditBalance decimal.Decimal              `json:"credit_balance"`
	Accounts      []accounting.TrialBalanceRow `json:"accounts"`
}

// GroupedTrialBalance is a trial balance presented by ancestor groups.
type GroupedTrialBalance struct {
	TenantID int64                         `json:"tenant_id"`
	AsOf     time.Time                     `json:"as_of"`
	Level    int                           `json:"level"`
	Groups   []TrialBalanceGroup           `json:"groups"`
	Totals   accounting.TrialBalanceTotals `json:"totals"`
}

// BuildTrialBalance groups tb rows under their ancestor at level. Rows that sit
// above level, or whose ancestor is missing from tree, form their own group.
// Group figures are the sums of their rows and the grand totals are carried
// over unchanged, so both views always agree.
func BuildTrialBalance(tb accounting.TrialBalance, tree *accounting.ChartTree, level int) GroupedTrialBalance {
	if level < 1 {
		level = 1
	}
	out := GroupedTrialBalance{
		TenantID: tb.TenantID,
		AsOf:     tb.AsOf,
		Level:    level,
		Totals:   tb.Totals,
	}
	index := make(map[string]int)
	for _, row := range tb.Accounts {
		code, name, groupLevel := row.Code, row.Name, row.Level
		if tree != nil {
			if anc, ok := tree.Ancestor(row.Code, level); ok {
				code, name, groupLevel = anc.Code, anc.Name, anc.Level
			}
		}
		i, ok := index[code]
		if !ok {
			i = len(out.Groups)
			index[code] = i
			out.Groups = append(out.Groups, TrialBalanceGroup{
				Code:          code,
				Name:          name,
				Level:         groupLevel,
				Debit:         decimal.Zero,
				Credit:        decimal.Zero,
				DebitBalance:  decimal.Zero,
				CreditBalance: decimal.Zero,
			})
		}
		grp := &out.Groups[i]
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.DebitBalance = grp.DebitBalance.Add(row.DebitBalance)
		grp.CreditBalance = grp.CreditBalance.Add(row.CreditBalance)
	}
	return out
}
