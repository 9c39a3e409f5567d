// Package audit pages and exports the ledger audit trail.
package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportBatch     = 500
)

// Source reads audit entries newest first. *accounting.Service satisfies it.
type Source interface {
	AuditLog(ctx context.Context, tenantID int64, filter accounting.AuditFilter) ([]accounting.AuditEntry, error)
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

type Service struct {
	source Source
}

func NewService(source Source) *Service {
	return &Service{source: source}
}

// Timeline returns one page of audit rows. Page sizes are clamped to
// [1, 50] with a default of 20.
func (s *Service) Timeline(ctx context.Context, tenantID int64, filters TimelineFilters) (Result, error) {
	if s.source == nil {
		return Result{}, errors.New("audit: source not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filter := filters.auditFilter()
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize + 1
	entries, err := s.source.AuditLog(ctx, tenantID, filter)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	rows := make([]TimelineRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, mapTimelineRow(e))
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row, newest first.
func (s *Service) Export(ctx context.Context, tenantID int64, filters TimelineFilters) ([]TimelineRow, error) {
	if s.source == nil {
		return nil, errors.New("audit: source not configured")
	}
	filter := filters.auditFilter()
	filter.Limit = exportBatch
	var rows []TimelineRow
	for {
		entries, err := s.source.AuditLog(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			rows = append(rows, mapTimelineRow(e))
		}
		if len(entries) < exportBatch {
			return rows, nil
		}
		filter.Offset += exportBatch
	}
}

type payloadRefs struct {
	Number json.Number `json:"number"`
	Period string      `json:"period"`
}

func mapTimelineRow(e accounting.AuditEntry) TimelineRow {
	row := TimelineRow{
		At:       e.At,
		ActorID:  e.ActorID,
		Action:   string(e.Action),
		Entity:   string(e.EntityType),
		EntityID: e.EntityID,
	}
	if len(e.Payload) > 0 {
		var refs payloadRefs
		if err := json.Unmarshal(e.Payload, &refs); err == nil {
			row.JournalNo = refs.Number.String()
			row.Period = refs.Period
		}
	}
	if e.EntityType == accounting.AuditEntityPeriod && row.Period == "" {
		row.Period = e.EntityID
	}
	return row
}
