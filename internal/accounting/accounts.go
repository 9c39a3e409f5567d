package accounting

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TemplateAccounts converts template rows into unsaved accounts, defaulting the
// nature from the type.
func TemplateAccounts(tenantID int64, template []AccountTemplate) ([]Account, error) {
	accounts := make([]Account, 0, len(template))
	for _, row := range template {
		code := strings.TrimSpace(row.Code)
		name := strings.TrimSpace(row.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: account %s has no name", ErrInvalidTemplate, code)
		}
		if !row.Type.Valid() {
			return nil, fmt.Errorf("%w: account %s has unknown type %q", ErrInvalidTemplate, code, row.Type)
		}
		nature := row.Nature
		if nature == "" {
			nature = row.Type.DefaultNature()
		}
		if !nature.Valid() {
			return nil, fmt.Errorf("%w: account %s has unknown nature %q", ErrInvalidTemplate, code, nature)
		}
		accounts = append(accounts, Account{
			TenantID: tenantID,
			Code:     code,
			Name:     name,
			Type:     row.Type,
			Nature:   nature,
			Tags:     NormalizeTags(row.Tags),
			IsActive: true,
		})
	}
	return accounts, nil
}

// SeedFromTemplate bulk-creates a tenant's chart of accounts. When the tenant
// already has accounts nothing is written and AlreadyInitialized is set.
func (s *Service) SeedFromTemplate(ctx context.Context, tenantID, actorID int64, template []AccountTemplate) (SeedResult, error) {
	if len(template) == 0 {
		return SeedResult{}, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}
	candidates, err := TemplateAccounts(tenantID, template)
	if err != nil {
		return SeedResult{}, err
	}
	tree, err := BuildTree(candidates)
	if err != nil {
		return SeedResult{}, err
	}
	ordered := tree.Accounts()
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].Code) != len(ordered[j].Code) {
			return len(ordered[i].Code) < len(ordered[j].Code)
		}
		return ordered[i].Code < ordered[j].Code
	})

	var result SeedResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		existing, err := tx.CountAccounts(ctx, tenantID)
		if err != nil {
			return err
		}
		if existing > 0 {
			result = SeedResult{AlreadyInitialized: true}
			return nil
		}
		now := s.now().UTC()
		ids := make(map[string]int64, len(ordered))
		for _, account := range ordered {
			if account.ParentCode != "" {
				parentID := ids[account.ParentCode]
				account.ParentID = &parentID
			}
			account.CreatedAt = now
			account.UpdatedAt = now
			inserted, err := tx.InsertAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("accounting: insert account %s: %w", account.Code, err)
			}
			ids[inserted.Code] = inserted.ID
		}
		result = SeedResult{Inserted: len(ordered)}
		return s.audit(ctx, tx, tenantID, actorID, AuditEntityChart, fmt.Sprintf("tenant:%d", tenantID), AuditChartSeeded, map[string]any{
			"accounts": len(ordered),
		})
	})
	if err != nil {
		return SeedResult{}, err
	}
	if !result.AlreadyInitialized {
		s.notify(ctx, tenantID, AuditChartSeeded)
	}
	return result, nil
}

// ListAccounts returns the tenant's accounts ordered by code.
func (s *Service) ListAccounts(ctx context.Context, tenantID int64, activeOnly bool) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, tenantID, activeOnly)
		return err
	})
	return accounts, err
}

// GetAccount loads an account by id.
func (s *Service) GetAccount(ctx context.Context, tenantID, accountID int64) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, tenantID, accountID)
		return err
	})
	return account, err
}

// GetAccountByCode loads an account by code.
func (s *Service) GetAccountByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountByCode(ctx, tenantID, strings.TrimSpace(code))
		return err
	})
	return account, err
}

// AccountTree builds the code-prefix hierarchy of every account of the tenant.
func (s *Service) AccountTree(ctx context.Context, tenantID int64) (*ChartTree, error) {
	accounts, err := s.ListAccounts(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	return BuildTree(accounts)
}

// DeactivateAccount hides an account from new postings and the trial balance.
func (s *Service) DeactivateAccount(ctx context.Context, tenantID, actorID, accountID int64) (Account, error) {
	return s.setAccountActive(ctx, tenantID, actorID, accountID, false)
}

// ReactivateAccount reverses DeactivateAccount.
func (s *Service) ReactivateAccount(ctx context.Context, tenantID, actorID, accountID int64) (Account, error) {
	return s.setAccountActive(ctx, tenantID, actorID, accountID, true)
}

func (s *Service) setAccountActive(ctx context.Context, tenantID, actorID, accountID int64, active bool) (Account, error) {
	action := AuditAccountDeactivated
	if active {
		action = AuditAccountReactivated
	}
	var account Account
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}
		current, err := tx.GetAccount(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		account = current
		if current.IsActive == active {
			return nil
		}
		now := s.now().UTC()
		if err := tx.SetAccountActive(ctx, tenantID, accountID, active, now); err != nil {
			return err
		}
		account.IsActive = active
		account.UpdatedAt = now
		changed = true
		return s.audit(ctx, tx, tenantID, actorID, AuditEntityAccount, account.Code, action, nil)
	})
	if err != nil {
		return Account{}, err
	}
	if changed {
		s.notify(ctx, tenantID, action)
	}
	return account, nil
}
