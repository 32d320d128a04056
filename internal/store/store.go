package store

import (
	"context"
	"errors"

	"distrigo/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrShortFulfillment = errors.New("insufficient eligible units")
)

// Record is implemented by every stored entity via domain.Base.
type Record interface {
	RecordID() string
}

// Collection is the generic persistence contract implemented once per entity
// collection. List applies search, filters, sort and pagination per
// domain.ListOptions; iteration order with no sort is creation order.
// Update applies a partial mutation under the store's lock and restamps the
// record; Update and Delete return ErrNotFound when no record matches.
type Collection[T Record] interface {
	List(ctx context.Context, opts domain.ListOptions) (domain.ListResult[T], error)
	GetByID(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, item T) (*T, error)
	Update(ctx context.Context, id string, apply func(*T) error) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Repository exposes one Collection per entity plus the serialized-unit
// operations that cannot be expressed through the generic contract: batch
// unit issuance and the creation-order scan-and-mark passes. The scan ops
// return how many records were actually marked; marking fewer than requested
// is not an error at this layer.
type Repository interface {
	Regionals() Collection[domain.Regional]
	Territories() Collection[domain.Territory]
	Areas() Collection[domain.Area]
	Suppliers() Collection[domain.Supplier]
	Stores() Collection[domain.Store]
	Customers() Collection[domain.Customer]
	Products() Collection[domain.Product]
	Purchases() Collection[domain.Purchase]
	Units() Collection[domain.ProductUnit]
	Placements() Collection[domain.UnitPlacement]
	Sales() Collection[domain.Sale]
	Transfers() Collection[domain.StockTransfer]
	RewardSettings() Collection[domain.RewardSetting]

	// SecureCodeExists reports whether any ProductUnit already carries code.
	SecureCodeExists(ctx context.Context, code string) (bool, error)

	// CreateUnitBatch persists one purchase's units together with their
	// companion placements, preserving slice order as creation order.
	CreateUnitBatch(ctx context.Context, units []domain.ProductUnit, placements []domain.UnitPlacement) error

	// MarkSold marks up to quantity unsold placements of the product as sold
	// to customerID, in creation order. A placement matches when it sits at
	// the store or has not been placed yet; unplaced ones are claimed for the
	// store as they are marked.
	MarkSold(ctx context.Context, productID, storeID string, quantity int, customerID string) (int, error)

	// TransferUnits relocates up to quantity unsold placements of the product
	// from one store to another, in creation order. Unplaced placements match
	// the source store too, so distribution out of the intake pool is a
	// transfer like any other.
	TransferUnits(ctx context.Context, productID, fromStoreID, toStoreID string, quantity int) (int, error)

	// MarkRewarded tags up to quantity reward-unassigned placements of the
	// product with tierCode, in creation order. Sold units participate.
	MarkRewarded(ctx context.Context, productID string, quantity int, tierCode string) (int, error)

	// CountUnassigned counts the product's placements with RewardStatus
	// false, independent of sale status.
	CountUnassigned(ctx context.Context, productID string) (int, error)

	// FindRewardSettingByProduct returns the product's reward configuration
	// or ErrNotFound.
	FindRewardSettingByProduct(ctx context.Context, productID string) (*domain.RewardSetting, error)
}
