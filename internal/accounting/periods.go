package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func validatePeriod(year, month int) error {
	if year < 1900 || year > 9999 || month < 1 || month > 12 {
		return fmt.Errorf("%w: %d-%d", ErrInvalidPeriod, year, month)
	}
	return nil
}

// loadPeriod returns the stored lock record or an open placeholder.
func loadPeriod(ctx context.Context, tx TxRepository, tenantID int64, year, month int) (Period, error) {
	period, err := tx.GetPeriod(ctx, tenantID, year, month)
	if errors.Is(err, ErrPeriodNotFound) {
		return Period{TenantID: tenantID, Year: year, Month: month}, nil
	}
	return period, err
}

func assertOpen(ctx context.Context, tx TxRepository, tenantID int64, date time.Time) error {
	period, err := loadPeriod(ctx, tx, tenantID, date.Year(), int(date.Month()))
	if err != nil {
		return err
	}
	if period.IsClosed {
		return &PeriodClosedError{Period: period.Code()}
	}
	return nil
}

// IsClosed reports whether the period containing date is closed. Periods
// without a record are open.
func (s *Service) IsClosed(ctx context.Context, tenantID int64, date time.Time) (bool, error) {
	var closed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := loadPeriod(ctx, tx, tenantID, date.Year(), int(date.Month()))
		if err != nil {
			return err
		}
		closed = period.IsClosed
		return nil
	})
	return closed, err
}

// AssertOpen fails with PeriodClosedError when the period of date is closed.
func (s *Service) AssertOpen(ctx context.Context, tenantID int64, date time.Time) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return assertOpen(ctx, tx, tenantID, date)
	})
}

// ClosePeriod locks a period. It fails when the period is already closed or
// still holds DRAFT entries.
func (s *Service) ClosePeriod(ctx context.Context, tenantID int64, year, month int, actorID int64) (Period, error) {
	if err := validatePeriod(year, month); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := loadPeriod(ctx, tx, tenantID, year, month)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return &PeriodAlreadyClosedError{Period: current.Code()}
		}
		drafts, err := tx.CountDrafts(ctx, tenantID, current.Code())
		if err != nil {
			return err
		}
		if drafts > 0 {
			return &OpenDraftsExistError{Period: current.Code(), Count: drafts}
		}
		now := s.now().UTC()
		current.IsClosed = true
		current.ClosedAt = &now
		current.ClosedBy = &actorID
		current.UpdatedAt = now
		if err := tx.UpsertPeriod(ctx, current); err != nil {
			return err
		}
		period = current
		return s.audit(ctx, tx, tenantID, actorID, AuditEntityPeriod, current.Code(), AuditPeriodClosed, nil)
	})
	if err != nil {
		return Period{}, err
	}
	s.notify(ctx, tenantID, AuditPeriodClosed)
	return period, nil
}

// ReopenPeriod clears the closed flag of a period.
func (s *Service) ReopenPeriod(ctx context.Context, tenantID int64, year, month int, actorID int64) (Period, error) {
	if err := validatePeriod(year, month); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := loadPeriod(ctx, tx, tenantID, year, month)
		if err != nil {
			return err
		}
		if !current.IsClosed {
			return &PeriodNotClosedError{Period: current.Code()}
		}
		now := s.now().UTC()
		current.IsClosed = false
		current.ReopenedAt = &now
		current.ReopenedBy = &actorID
		current.UpdatedAt = now
		if err := tx.UpsertPeriod(ctx, current); err != nil {
			return err
		}
		period = current
		return s.audit(ctx, tx, tenantID, actorID, AuditEntityPeriod, current.Code(), AuditPeriodReopened, map[string]any{
			"closed_at": current.ClosedAt,
		})
	})
	if err != nil {
		return Period{}, err
	}
	s.notify(ctx, tenantID, AuditPeriodReopened)
	return period, nil
}

// PeriodStatus reports the lock state and draft count of a period.
func (s *Service) PeriodStatus(ctx context.Context, tenantID int64, year, month int) (PeriodStatusView, error) {
	if err := validatePeriod(year, month); err != nil {
		return PeriodStatusView{}, err
	}
	var view PeriodStatusView
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := loadPeriod(ctx, tx, tenantID, year, month)
		if err != nil {
			return err
		}
		drafts, err := tx.CountDrafts(ctx, tenantID, period.Code())
		if err != nil {
			return err
		}
		view = PeriodStatusView{
			Year:       year,
			Month:      month,
			Period:     period.Code(),
			IsClosed:   period.IsClosed,
			ClosedAt:   period.ClosedAt,
			ClosedBy:   period.ClosedBy,
			DraftCount: drafts,
		}
		return nil
	})
	return view, err
}

// ListPeriods returns every period that has a lock record, oldest first.
func (s *Service) ListPeriods(ctx context.Context, tenantID int64) ([]Period, error) {
	var periods []Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		periods, err = tx.ListPeriods(ctx, tenantID)
		return err
	})
	return periods, err
}
