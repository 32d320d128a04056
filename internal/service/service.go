// Package service orchestrates the multi-step workflows: purchase intake,
// sale recording and stock transfers, each of which fans out into ledger and
// registry side effects. Steps run in order with no rollback; a failed later
// step leaves earlier steps applied.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"distrigo/backend/internal/code"
	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/reward"
	"distrigo/backend/internal/store"
	"distrigo/backend/internal/validate"
)

type Service struct {
	repo    store.Repository
	rewards *reward.Engine
	log     *zap.Logger
	strict  bool
}

// New builds the orchestrator. With strictFulfillment enabled, sales and
// transfers that mark fewer units than requested return
// store.ErrShortFulfillment after marking what they could.
func New(repo store.Repository, rewards *reward.Engine, log *zap.Logger, strictFulfillment bool) *Service {
	return &Service{
		repo:    repo,
		rewards: rewards,
		log:     log,
		strict:  strictFulfillment,
	}
}

func validateInput(v any) error {
	if errs := validate.Struct(v); errs != nil {
		return fmt.Errorf("%w: %s", store.ErrValidation, validate.Describe(errs))
	}
	return nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// RecordPurchase creates the purchase, credits the product's stock and issues
// one serialized unit per purchased quantity.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (*domain.Purchase, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.Products().GetByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("product %s: %w", req.ProductID, err)
	}
	if _, err := s.repo.Suppliers().GetByID(ctx, req.SupplierID); err != nil {
		return nil, fmt.Errorf("supplier %s: %w", req.SupplierID, err)
	}

	purchase, err := s.repo.Purchases().Create(ctx, domain.Purchase{
		ProductID:    req.ProductID,
		SupplierID:   req.SupplierID,
		Quantity:     req.Quantity,
		TotalCents:   req.TotalCents,
		PurchaseDate: orNow(req.PurchaseDate),
	})
	if err != nil {
		return nil, err
	}

	if err := s.adjustStock(ctx, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}
	if err := s.issueUnits(ctx, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}

	return purchase, nil
}

// RecordSale creates the sale, debits stock and marks units sold at the
// store. The ledger may go negative; that is logged, not rejected.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.Sale, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.Products().GetByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("product %s: %w", req.ProductID, err)
	}
	if _, err := s.repo.Stores().GetByID(ctx, req.StoreID); err != nil {
		return nil, fmt.Errorf("store %s: %w", req.StoreID, err)
	}
	if req.CustomerID != "" {
		if _, err := s.repo.Customers().GetByID(ctx, req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer %s: %w", req.CustomerID, err)
		}
	}

	sale, err := s.repo.Sales().Create(ctx, domain.Sale{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
		Quantity:   req.Quantity,
		TotalCents: req.TotalCents,
		SaleDate:   orNow(req.SaleDate),
		StoreID:    req.StoreID,
		Regional:   req.Regional,
		Territory:  req.Territory,
		Area:       req.Area,
	})
	if err != nil {
		return nil, err
	}

	if err := s.adjustStock(ctx, req.ProductID, -req.Quantity); err != nil {
		return nil, err
	}

	marked, err := s.repo.MarkSold(ctx, req.ProductID, req.StoreID, req.Quantity, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if marked < req.Quantity {
		s.log.Warn("sale under-fulfilled",
			zap.String("sale_id", sale.ID),
			zap.String("product_id", req.ProductID),
			zap.Int("requested", req.Quantity),
			zap.Int("marked", marked))
		if s.strict {
			return nil, fmt.Errorf("%w: marked %d of %d", store.ErrShortFulfillment, marked, req.Quantity)
		}
	}

	return sale, nil
}

// RecordTransfer creates the transfer record and relocates unsold units from
// the source store. The stock ledger is global and stays untouched.
func (s *Service) RecordTransfer(ctx context.Context, req domain.TransferCreateRequest) (*domain.StockTransfer, error) {
	if err := validateInput(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.Products().GetByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("product %s: %w", req.ProductID, err)
	}
	if _, err := s.repo.Stores().GetByID(ctx, req.FromStoreID); err != nil {
		return nil, fmt.Errorf("store %s: %w", req.FromStoreID, err)
	}
	if _, err := s.repo.Stores().GetByID(ctx, req.ToStoreID); err != nil {
		return nil, fmt.Errorf("store %s: %w", req.ToStoreID, err)
	}

	transfer, err := s.repo.Transfers().Create(ctx, domain.StockTransfer{
		ProductID:    req.ProductID,
		FromStoreID:  req.FromStoreID,
		ToStoreID:    req.ToStoreID,
		Quantity:     req.Quantity,
		TransferDate: orNow(req.TransferDate),
	})
	if err != nil {
		return nil, err
	}

	moved, err := s.repo.TransferUnits(ctx, req.ProductID, req.FromStoreID, req.ToStoreID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if moved < req.Quantity {
		s.log.Warn("transfer under-fulfilled",
			zap.String("transfer_id", transfer.ID),
			zap.String("product_id", req.ProductID),
			zap.Int("requested", req.Quantity),
			zap.Int("moved", moved))
		if s.strict {
			return nil, fmt.Errorf("%w: moved %d of %d", store.ErrShortFulfillment, moved, req.Quantity)
		}
	}

	return transfer, nil
}

// GenerateRewards runs one allocation pass for the product.
func (s *Service) GenerateRewards(ctx context.Context, productID string) (*domain.RewardGenerationResult, error) {
	if _, err := s.repo.Products().GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	return s.rewards.Generate(ctx, productID)
}

// PoolSummary reports the product's serialized unit pool.
func (s *Service) PoolSummary(ctx context.Context, productID string) (*domain.PoolSummary, error) {
	if _, err := s.repo.Products().GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	return s.rewards.PoolSummary(ctx, productID)
}

// UnitByCode resolves a placement by its unit's secure code.
func (s *Service) UnitByCode(ctx context.Context, secureCode string) (*domain.UnitPlacement, error) {
	result, err := s.repo.Placements().List(ctx, domain.ListOptions{
		Filters: map[string]string{"unique_key": secureCode},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if result.Total == 0 {
		return nil, store.ErrNotFound
	}
	placement := result.Items[0]
	return &placement, nil
}

func (s *Service) adjustStock(ctx context.Context, productID string, delta int) error {
	updated, err := s.repo.Products().Update(ctx, productID, func(p *domain.Product) error {
		p.Stock += delta
		return nil
	})
	if err != nil {
		return fmt.Errorf("adjust stock for %s: %w", productID, err)
	}
	if updated.Stock < 0 {
		s.log.Warn("stock went negative",
			zap.String("product_id", productID),
			zap.Int("stock", updated.Stock))
	}
	return nil
}

// issueUnits mints quantity serialized units for the product, each with a
// secure code unique across the registry and the in-flight batch.
func (s *Service) issueUnits(ctx context.Context, productID string, quantity int) error {
	pending := make(map[string]struct{}, quantity)
	exists := func(ctx context.Context, candidate string) (bool, error) {
		if _, ok := pending[candidate]; ok {
			return true, nil
		}
		return s.repo.SecureCodeExists(ctx, candidate)
	}

	units := make([]domain.ProductUnit, 0, quantity)
	placements := make([]domain.UnitPlacement, 0, quantity)
	for i := 0; i < quantity; i++ {
		secureCode, err := code.UniqueSecureCode(ctx, exists)
		if err != nil {
			return fmt.Errorf("issue unit %d of %d: %w", i+1, quantity, err)
		}
		pending[secureCode] = struct{}{}
		units = append(units, domain.ProductUnit{
			ProductID:  productID,
			SecureCode: secureCode,
		})
		placements = append(placements, domain.UnitPlacement{
			ProductID: productID,
			UniqueKey: secureCode,
		})
	}

	return s.repo.CreateUnitBatch(ctx, units, placements)
}
