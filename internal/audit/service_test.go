package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

// stubSource serves a fixed newest-first audit trail and records filters.
type stubSource struct {
	entries []accounting.AuditEntry
	calls   []accounting.AuditFilter
}

func (s *stubSource) AuditLog(_ context.Context, _ int64, filter accounting.AuditFilter) ([]accounting.AuditEntry, error) {
	s.calls = append(s.calls, filter)
	if filter.Offset >= len(s.entries) {
		return nil, nil
	}
	out := s.entries[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func entries(n int) []accounting.AuditEntry {
	base := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	out := make([]accounting.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		payload, _ := json.Marshal(map[string]any{"number": n - i, "period": "2024-03"})
		out = append(out, accounting.AuditEntry{
			ID:         int64(n - i),
			TenantID:   1,
			EntityType: accounting.AuditEntityJournalEntry,
			EntityID:   "1",
			Action:     accounting.AuditEntryPosted,
			ActorID:    4,
			At:         base.Add(-time.Duration(i) * time.Minute),
			Payload:    payload,
		})
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	src := &stubSource{entries: entries(3)}
	svc := NewService(src)

	result, err := svc.Timeline(context.Background(), 1, TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, src.calls[0].Limit)
	require.Equal(t, 0, src.calls[0].Offset)
	require.Equal(t, "3", result.Rows[0].JournalNo)
	require.Equal(t, "2024-03", result.Rows[0].Period)

	result, err = svc.Timeline(context.Background(), 1, TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelinePageSizeClamp(t *testing.T) {
	src := &stubSource{entries: entries(60)}
	svc := NewService(src)

	result, err := svc.Timeline(context.Background(), 1, TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 20, result.Paging.PageSize)
	require.Equal(t, 1, result.Paging.Page)
	require.Len(t, result.Rows, 20)

	result, err = svc.Timeline(context.Background(), 1, TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 50, result.Paging.PageSize)
	require.Len(t, result.Rows, 50)
	require.True(t, result.Paging.HasNext)
}

func TestExportReturnsAllRows(t *testing.T) {
	src := &stubSource{entries: entries(exportBatch + 7)}
	svc := NewService(src)
	rows, err := svc.Export(context.Background(), 1, TimelineFilters{Action: accounting.AuditEntryPosted})
	require.NoError(t, err)
	require.Len(t, rows, exportBatch+7)
	require.Len(t, src.calls, 2)
	require.Equal(t, accounting.AuditEntryPosted, src.calls[1].Action)
	require.Equal(t, exportBatch, src.calls[1].Offset)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows[:1]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\r\n")
	require.Equal(t, "at,actor_id,action,entity,entity_id,period,journal_no", lines[0])
	require.Equal(t, "2024-03-31T12:00:00Z,4,POSTED,JOURNAL_ENTRY,1,2024-03,507", lines[1])
}

func TestPeriodRowsCarryTheirCode(t *testing.T) {
	row := mapTimelineRow(accounting.AuditEntry{
		EntityType: accounting.AuditEntityPeriod,
		EntityID:   "2024-02",
		Action:     accounting.AuditPeriodClosed,
	})
	require.Equal(t, "2024-02", row.Period)
	require.Empty(t, row.JournalNo)
}
