package accounting

import "context"

// AuditLog lists audit entries newest first.
func (s *Service) AuditLog(ctx context.Context, tenantID int64, filter AuditFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var entries []AuditEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListAudit(ctx, tenantID, filter)
		return err
	})
	return entries, err
}

// ListTenants returns every tenant with a chart of accounts.
func (s *Service) ListTenants(ctx context.Context) ([]int64, error) {
	var tenants []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tenants, err = tx.ListTenants(ctx)
		return err
	})
	return tenants, err
}
