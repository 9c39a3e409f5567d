package reports

import (
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/export"
)

const amountPlaces = 2

// WriteTrialBalanceCSV writes one row per account followed by a totals row.
func WriteTrialBalanceCSV(w io.Writer, tb accounting.TrialBalance) error {
	s := export.NewCSVStreamer(w)
	if err := s.Comment("trial balance as of " + tb.AsOf.Format(time.DateOnly)); err != nil {
		return err
	}
	if err := s.Row("code", "name", "type", "level", "debit", "credit", "debit_balance", "credit_balance"); err != nil {
		return err
	}
	for _, row := range tb.Accounts {
		if err := s.Row(
			row.Code,
			row.Name,
			string(row.Type),
			strconv.Itoa(row.Level),
			row.Debit.StringFixed(amountPlaces),
			row.Credit.StringFixed(amountPlaces),
			row.DebitBalance.StringFixed(amountPlaces),
			row.CreditBalance.StringFixed(amountPlaces),
		); err != nil {
			return err
		}
	}
	if err := s.Row("", "TOTAL", "", "",
		tb.Totals.TotalDebits.StringFixed(amountPlaces),
		tb.Totals.TotalCredits.StringFixed(amountPlaces),
		tb.Totals.TotalDebitBalance.StringFixed(amountPlaces),
		tb.Totals.TotalCreditBalance.StringFixed(amountPlaces),
	); err != nil {
		return err
	}
	return s.Flush()
}

// WriteGeneralLedgerCSV writes an opening row, the movements and a closing row
// for every ledger.
func WriteGeneralLedgerCSV(w io.Writer, ledgers []accounting.AccountLedger) error {
	s := export.NewCSVStreamer(w)
	if err := s.Row("code", "name", "date", "entry", "type", "reference", "description", "debit", "credit", "balance"); err != nil {
		return err
	}
	for _, l := range ledgers {
		if err := s.Row(l.Code, l.Name, dateCell(l.Start), "", "", "", "opening balance", "", "", l.InitialBalance.StringFixed(amountPlaces)); err != nil {
			return err
		}
		for _, m := range l.Movements {
			if err := s.Row(
				l.Code,
				l.Name,
				m.Date.Format(time.DateOnly),
				strconv.FormatInt(m.EntryNumber, 10),
				string(m.EntryType),
				m.Reference,
				m.Description,
				m.Debit.StringFixed(amountPlaces),
				m.Credit.StringFixed(amountPlaces),
				m.Balance.StringFixed(amountPlaces),
			); err != nil {
				return err
			}
		}
		if err := s.Row(l.Code, l.Name, dateCell(l.End), "", "", "", "closing balance",
			l.TotalDebit.StringFixed(amountPlaces),
			l.TotalCredit.StringFixed(amountPlaces),
			l.FinalBalance.StringFixed(amountPlaces)); err != nil {
			return err
		}
	}
	return s.Flush()
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
