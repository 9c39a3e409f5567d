package accounting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLevelForCode(t *testing.T) {
	cases := map[string]int{"1": 1, "11": 2, "1105": 3, "110505": 4, "11050501": 5}
	for code, want := range cases {
		got, err := LevelForCode(code)
		require.NoError(t, err, code)
		require.Equal(t, want, got, code)
	}
	for _, bad := range []string{"", "111", "11050", "1a", " 1"} {
		_, err := LevelForCode(bad)
		require.ErrorIs(t, err, ErrInvalidAccountCode, bad)
	}
}

func TestParentCode(t *testing.T) {
	require.Equal(t, "", ParentCode("1"))
	require.Equal(t, "1", ParentCode("11"))
	require.Equal(t, "11", ParentCode("1105"))
	require.Equal(t, "1105", ParentCode("110505"))
	require.Equal(t, "", ParentCode("111"))
}

func TestBuildTree(t *testing.T) {
	accounts := []Account{
		{ID: 4, Code: "1105", Name: "Cash"},
		{ID: 1, Code: "1", Name: "Assets", Level: 9},
		{ID: 2, Code: "11", Name: "Current"},
		{ID: 5, Code: "110505", Name: "Petty cash"},
		{ID: 3, Code: "2", Name: "Liabilities"},
	}
	tree, err := BuildTree(accounts)
	require.NoError(t, err)
	require.Equal(t, 5, tree.Len())

	ordered := tree.Accounts()
	codes := make([]string, 0, len(ordered))
	for _, a := range ordered {
		codes = append(codes, a.Code)
		level, err := LevelForCode(a.Code)
		require.NoError(t, err)
		require.Equal(t, level, a.Level, "stored level must match the code")
	}
	require.Equal(t, []string{"1", "11", "1105", "110505", "2"}, codes)

	cash, ok := tree.Get("1105")
	require.True(t, ok)
	require.Equal(t, "11", cash.ParentCode)
	require.NotNil(t, cash.ParentID)
	require.Equal(t, int64(2), *cash.ParentID)

	require.Len(t, tree.Roots(), 2)
	require.Len(t, tree.Children("1"), 1)
	require.Len(t, tree.Descendants("1"), 3)
	parent, ok := tree.Parent("110505")
	require.True(t, ok)
	require.Equal(t, "1105", parent.Code)

	top, ok := tree.Ancestor("110505", 2)
	require.True(t, ok)
	require.Equal(t, "11", top.Code)
	self, ok := tree.Ancestor("11", 3)
	require.True(t, ok)
	require.Equal(t, "11", self.Code)

	// input slice is left untouched
	require.Equal(t, 9, accounts[1].Level)
}

func TestBuildTreeOrphanAndDuplicate(t *testing.T) {
	_, err := BuildTree([]Account{{Code: "1"}, {Code: "1105"}})
	var orphan *OrphanAccountError
	require.ErrorAs(t, err, &orphan)
	require.Equal(t, "1105", orphan.Code)
	require.Equal(t, "11", orphan.ParentCode)

	_, err = BuildTree([]Account{{Code: "1"}, {Code: "1"}})
	require.ErrorIs(t, err, ErrDuplicateAccountCode)

	_, err = BuildTree([]Account{{Code: "123"}})
	require.ErrorIs(t, err, ErrInvalidAccountCode)
}

func TestReplayIsPure(t *testing.T) {
	lines := []PostedLine{
		{EntryNumber: 1, Debit: decimal.RequireFromString("100"), Credit: decimal.Zero},
		{EntryNumber: 2, Debit: decimal.Zero, Credit: decimal.RequireFromString("30")},
		{EntryNumber: 3, Debit: decimal.RequireFromString("5.5"), Credit: decimal.Zero},
	}
	initial := decimal.RequireFromString("10")
	first, final, debit, credit := Replay(initial, lines)
	second, final2, _, _ := Replay(initial, lines)
	require.Equal(t, first, second)
	require.True(t, final.Equal(final2))
	require.True(t, final.Equal(decimal.RequireFromString("85.5")))
	require.True(t, final.Equal(initial.Add(debit).Sub(credit)))
	require.True(t, first[1].Balance.Equal(decimal.RequireFromString("80")))

	none, empty, _, _ := Replay(initial, nil)
	require.Empty(t, none)
	require.True(t, empty.Equal(initial))
}

func TestEntryStatusTransitions(t *testing.T) {
	require.True(t, EntryStatusDraft.CanTransition(EntryStatusApproved))
	require.True(t, EntryStatusDraft.CanTransition(EntryStatusVoid))
	require.False(t, EntryStatusApproved.CanTransition(EntryStatusVoid))
	require.False(t, EntryStatusApproved.CanTransition(EntryStatusDraft))
	require.False(t, EntryStatusVoid.CanTransition(EntryStatusApproved))
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	require.ErrorIs(t, &PeriodClosedError{Period: "2024-03"}, ErrPeriodLocked)
	require.ErrorIs(t, &OpenDraftsExistError{Count: 1}, ErrOpenDraftsExist)
	require.ErrorIs(t, &EntryNotFoundError{ID: 1}, ErrJournalNotFound)
	require.ErrorIs(t, &AccountNotFoundError{Code: "11"}, ErrAccountNotFound)
	require.True(t, IsConflict(&PeriodAlreadyClosedError{}))
	require.True(t, IsUnprocessable(&UnbalancedEntryError{}))
	require.False(t, IsValidation(nil))
	require.Equal(t, "accounting: period 2024-03 is closed", (&PeriodClosedError{Period: "2024-03"}).Error())
}
