package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

var printer = message.NewPrinter(language.English)

// amount renders d with two decimals and grouped thousands. The integer part
// goes through the printer as an int64 so no float rounding is involved.
func amount(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	if n, err := decimal.NewFromString(whole); err == nil && n.LessThan(decimal.New(1, 18)) {
		b.WriteString(printer.Sprintf("%d", n.IntPart()))
	} else {
		b.WriteString(whole)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func printTrialBalance(w io.Writer, tb reports.GroupedTrialBalance) error {
	fmt.Fprintf(w, "Trial balance as of %s (level %d)\n\n", tb.AsOf.Format(time.DateOnly), tb.Level)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT\tDEBIT BAL\tCREDIT BAL\t")
	for _, g := range tb.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			g.Code, g.Name, amount(g.Debit), amount(g.Credit), amount(g.DebitBalance), amount(g.CreditBalance))
	}
	t := tb.Totals
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t%s\t%s\t\n",
		amount(t.TotalDebits), amount(t.TotalCredits), amount(t.TotalDebitBalance), amount(t.TotalCreditBalance))
	return tw.Flush()
}
