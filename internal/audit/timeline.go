package audit

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// TimelineFilters holds the audit timeline filters. Zero values match
// everything.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   accounting.AuditEntityType
	EntityID string
	Action   accounting.AuditAction
	Page     int
	PageSize int
}

func (f TimelineFilters) auditFilter() accounting.AuditFilter {
	return accounting.AuditFilter{
		EntityType: f.Entity,
		EntityID:   f.EntityID,
		Action:     f.Action,
		ActorID:    f.ActorID,
		From:       f.From,
		To:         f.To,
	}
}

// TimelineRow is one flattened audit record.
type TimelineRow struct {
	At        time.Time `json:"at"`
	ActorID   int64     `json:"actor_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Period    string    `json:"period,omitempty"`
	JournalNo string    `json:"journal_no,omitempty"`
}

// PagingInfo describes the page returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}
