package audit

import (
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/export"
)

// WriteCSV writes the timeline rows as CSV.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	s := export.NewCSVStreamer(w)
	if err := s.Row("at", "actor_id", "action", "entity", "entity_id", "period", "journal_no"); err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.Row(
			row.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.ActorID, 10),
			row.Action,
			row.Entity,
			row.EntityID,
			row.Period,
			row.JournalNo,
		); err != nil {
			return err
		}
	}
	return s.Flush()
}
