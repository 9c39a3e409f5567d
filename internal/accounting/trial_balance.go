package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account line of a trial balance.
type TrialBalanceRow struct {
	AccountID     int64           `json:"account_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	Nature        Nature          `json:"nature"`
	Level         int             `json:"level"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
	DebitBalance  decimal.Decimal `json:"debit_balance"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// TrialBalanceTotals sums the included rows.
type TrialBalanceTotals struct {
	TotalDebits        decimal.Decimal `json:"total_debits"`
	TotalCredits       decimal.Decimal `json:"total_credits"`
	TotalDebitBalance  decimal.Decimal `json:"total_debit_balance"`
	TotalCreditBalance decimal.Decimal `json:"total_credit_balance"`
}

// TrialBalance is the per-account summary of approved activity up to AsOf.
type TrialBalance struct {
	TenantID int64              `json:"tenant_id"`
	AsOf     time.Time          `json:"as_of"`
	Accounts []TrialBalanceRow  `json:"accounts"`
	Totals   TrialBalanceTotals `json:"totals"`
}

// EquationCheck compares assets against liabilities plus equity.
type EquationCheck struct {
	Assets            decimal.Decimal `json:"assets"`
	LiabilitiesEquity decimal.Decimal `json:"liabilities_equity"`
	Difference        decimal.Decimal `json:"difference"`
	Balanced          bool            `json:"balanced"`
	NetIncome         decimal.Decimal `json:"net_income"`
	TotalsBalanced    bool            `json:"totals_balanced"`
}

// SplitBalance returns the debit and credit balance columns of balance. Only
// one side is ever nonzero.
func SplitBalance(balance decimal.Decimal) (debitBalance, creditBalance decimal.Decimal) {
	if balance.IsPositive() {
		return balance, decimal.Zero
	}
	return decimal.Zero, balance.Neg()
}

// BuildTrialBalance assembles rows for accounts with approved activity, ordered
// by the order of accounts. Deactivated accounts keep their rows while they
// carry activity, otherwise the totals would stop balancing.
func BuildTrialBalance(tenantID int64, asOf time.Time, accounts []Account, totals map[int64]AccountTotals) TrialBalance {
	tb := TrialBalance{
		TenantID: tenantID,
		AsOf:     asOf,
		Accounts: []TrialBalanceRow{},
		Totals: TrialBalanceTotals{
			TotalDebits:        decimal.Zero,
			TotalCredits:       decimal.Zero,
			TotalDebitBalance:  decimal.Zero,
			TotalCreditBalance: decimal.Zero,
		},
	}
	for _, account := range accounts {
		t, ok := totals[account.ID]
		if !ok || (t.Debit.IsZero() && t.Credit.IsZero()) {
			continue
		}
		balance := t.Debit.Sub(t.Credit)
		debitBalance, creditBalance := SplitBalance(balance)
		tb.Accounts = append(tb.Accounts, TrialBalanceRow{
			AccountID:     account.ID,
			Code:          account.Code,
			Name:          account.Name,
			Type:          account.Type,
			Nature:        account.Nature,
			Level:         account.Level,
			Debit:         t.Debit,
			Credit:        t.Credit,
			Balance:       balance,
			DebitBalance:  debitBalance,
			CreditBalance: creditBalance,
		})
		tb.Totals.TotalDebits = tb.Totals.TotalDebits.Add(t.Debit)
		tb.Totals.TotalCredits = tb.Totals.TotalCredits.Add(t.Credit)
		tb.Totals.TotalDebitBalance = tb.Totals.TotalDebitBalance.Add(debitBalance)
		tb.Totals.TotalCreditBalance = tb.Totals.TotalCreditBalance.Add(creditBalance)
	}
	return tb
}

// TrialBalance sums approved activity of every account up to and including
// asOf. A nil asOf means today.
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf *time.Time) (TrialBalance, error) {
	cutoff := DateOnly(s.now())
	if asOf != nil {
		cutoff = DateOnly(*asOf)
	}
	var tb TrialBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.ListAccounts(ctx, tenantID, false)
		if err != nil {
			return err
		}
		totals, err := tx.ApprovedTotals(ctx, tenantID, 0, cutoff)
		if err != nil {
			return err
		}
		tb = BuildTrialBalance(tenantID, cutoff, accounts, totals)
		return nil
	})
	return tb, err
}

// CheckEquation is a diagnostic: it never fails, it reports.
func CheckEquation(tb TrialBalance, epsilon decimal.Decimal) EquationCheck {
	check := EquationCheck{
		Assets:            decimal.Zero,
		LiabilitiesEquity: decimal.Zero,
		NetIncome:         decimal.Zero,
	}
	for _, row := range tb.Accounts {
		switch row.Type {
		case AccountTypeAsset:
			check.Assets = check.Assets.Add(row.DebitBalance)
		case AccountTypeLiability, AccountTypeEquity:
			check.LiabilitiesEquity = check.LiabilitiesEquity.Add(row.CreditBalance)
		case AccountTypeIncome:
			check.NetIncome = check.NetIncome.Add(row.CreditBalance)
		case AccountTypeExpense, AccountTypeCostOfSales:
			check.NetIncome = check.NetIncome.Sub(row.DebitBalance)
		}
	}
	check.Difference = check.Assets.Sub(check.LiabilitiesEquity)
	check.Balanced = check.Difference.Abs().LessThan(epsilon)
	check.TotalsBalanced = tb.Totals.TotalDebits.Sub(tb.Totals.TotalCredits).Abs().LessThan(epsilon)
	return check
}

// CheckEquation runs the equation diagnostic with the service epsilon.
func (s *Service) CheckEquation(tb TrialBalance) EquationCheck {
	return CheckEquation(tb, s.epsilon)
}
