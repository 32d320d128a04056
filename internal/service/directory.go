package service

import (
	"context"
	"errors"
	"fmt"

	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/store"
)

// Directory guards run before create and update of the entities that carry
// business rules beyond struct validation. excludeID is the record being
// updated, empty on create.

func (s *Service) CheckCustomer(ctx context.Context, customer *domain.Customer, excludeID string) error {
	if err := validateInput(customer); err != nil {
		return err
	}
	if customer.Email != "" {
		if err := s.ensureUniqueCustomerField(ctx, "email", customer.Email, excludeID); err != nil {
			return err
		}
	}
	if customer.Phone != "" {
		if err := s.ensureUniqueCustomerField(ctx, "phone", customer.Phone, excludeID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CheckSupplier(ctx context.Context, supplier *domain.Supplier, excludeID string) error {
	if err := validateInput(supplier); err != nil {
		return err
	}
	if supplier.Email != "" {
		if err := s.ensureUniqueSupplierField(ctx, "email", supplier.Email, excludeID); err != nil {
			return err
		}
	}
	if supplier.Mobile != "" {
		if err := s.ensureUniqueSupplierField(ctx, "mobile", supplier.Mobile, excludeID); err != nil {
			return err
		}
	}
	return nil
}

// CheckRewardSetting enforces at most one setting per product.
func (s *Service) CheckRewardSetting(ctx context.Context, setting *domain.RewardSetting, excludeID string) error {
	if err := validateInput(setting); err != nil {
		return err
	}
	if _, err := s.repo.Products().GetByID(ctx, setting.ProductID); err != nil {
		return fmt.Errorf("product %s: %w", setting.ProductID, err)
	}
	existing, err := s.repo.FindRewardSettingByProduct(ctx, setting.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != excludeID {
		return fmt.Errorf("%w: product %s already has a reward setting", store.ErrConflict, setting.ProductID)
	}
	return nil
}

func (s *Service) ensureUniqueCustomerField(ctx context.Context, field, value, excludeID string) error {
	result, err := s.repo.Customers().List(ctx, domain.ListOptions{
		Filters: map[string]string{field: value},
		Limit:   2,
	})
	if err != nil {
		return err
	}
	for _, existing := range result.Items {
		if existing.ID != excludeID {
			return fmt.Errorf("%w: customer %s %q already in use", store.ErrConflict, field, value)
		}
	}
	return nil
}

func (s *Service) ensureUniqueSupplierField(ctx context.Context, field, value, excludeID string) error {
	result, err := s.repo.Suppliers().List(ctx, domain.ListOptions{
		Filters: map[string]string{field: value},
		Limit:   2,
	})
	if err != nil {
		return err
	}
	for _, existing := range result.Items {
		if existing.ID != excludeID {
			return fmt.Errorf("%w: supplier %s %q already in use", store.ErrConflict, field, value)
		}
	}
	return nil
}
