package accounting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func TestAccountMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, day(2024, 2, 20), f.line("11", "500", "0"), f.line("31", "0", "500"))
	rent := f.post(t, day(2024, 3, 5), f.line("51", "120", "0"), f.line("11", "0", "120"))
	sale := f.post(t, day(2024, 3, 5), f.line("11", "80", "0"), f.line("41", "0", "80"))
	f.post(t, day(2024, 3, 31), f.line("11", "10", "0"), f.line("41", "0", "10"))
	f.post(t, day(2024, 4, 1), f.line("11", "999", "0"), f.line("41", "0", "999"))

	start, end := day(2024, 3, 1), day(2024, 3, 31)
	ledger, err := f.svc.AccountMovements(ctx, tenantID, f.accounts["11"], &start, &end)
	require.NoError(t, err)
	require.Equal(t, "11", ledger.Code)
	require.True(t, ledger.InitialBalance.Equal(d("500")))
	require.Len(t, ledger.Movements, 3)
	// same date: entry number breaks the tie
	require.Equal(t, rent.Number, ledger.Movements[0].EntryNumber)
	require.Equal(t, sale.Number, ledger.Movements[1].EntryNumber)
	require.True(t, ledger.Movements[0].Balance.Equal(d("380")))
	require.True(t, ledger.Movements[1].Balance.Equal(d("460")))
	require.True(t, ledger.FinalBalance.Equal(d("470")))
	require.True(t, ledger.TotalDebit.Equal(d("90")))
	require.True(t, ledger.TotalCredit.Equal(d("120")))

	sum := ledger.InitialBalance
	for _, m := range ledger.Movements {
		sum = sum.Add(m.Debit).Sub(m.Credit)
	}
	require.True(t, ledger.FinalBalance.Equal(sum))

	again, err := f.svc.AccountMovements(ctx, tenantID, f.accounts["11"], &start, &end)
	require.NoError(t, err)
	require.Equal(t, ledger, again)

	open, err := f.svc.AccountMovements(ctx, tenantID, f.accounts["11"], nil, nil)
	require.NoError(t, err)
	require.True(t, open.InitialBalance.IsZero())
	require.Len(t, open.Movements, 5)
	require.True(t, open.FinalBalance.Equal(d("1469")))
}

func TestAccountMovementsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AccountMovements(ctx, tenantID, 12345, nil, nil)
	var notFound *accounting.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)

	start, end := day(2024, 3, 31), day(2024, 3, 1)
	_, err = f.svc.AccountMovements(ctx, tenantID, f.accounts["11"], &start, &end)
	require.ErrorIs(t, err, accounting.ErrInvalidPeriod)

	empty, err := f.svc.AccountMovements(ctx, tenantID, f.accounts["21"], nil, nil)
	require.NoError(t, err)
	require.Empty(t, empty.Movements)
	require.True(t, empty.FinalBalance.Equal(empty.InitialBalance))
}

func TestGeneralLedgerOmitsQuietAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.post(t, day(2024, 1, 10), f.line("11", "70", "0"), f.line("31", "0", "70"))
	f.post(t, day(2024, 3, 10), f.line("51", "20", "0"), f.line("11", "0", "20"))

	start, end := day(2024, 3, 1), day(2024, 3, 31)
	ledgers, err := f.svc.GeneralLedger(ctx, tenantID, accounting.GeneralLedgerFilter{Start: &start, End: &end})
	require.NoError(t, err)
	codes := make([]string, 0, len(ledgers))
	for _, l := range ledgers {
		codes = append(codes, l.Code)
	}
	// 31 has an opening balance but no March movement, 21 has nothing at all
	require.Equal(t, []string{"11", "31", "51"}, codes)
	require.Empty(t, ledgers[1].Movements)
	require.True(t, ledgers[1].InitialBalance.Equal(d("-70")))

	one, err := f.svc.GeneralLedger(ctx, tenantID, accounting.GeneralLedgerFilter{AccountID: f.accounts["51"]})
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.True(t, one[0].FinalBalance.Equal(d("20")))

	quiet, err := f.svc.GeneralLedger(ctx, tenantID, accounting.GeneralLedgerFilter{AccountID: f.accounts["21"]})
	require.NoError(t, err)
	require.Empty(t, quiet)
}
