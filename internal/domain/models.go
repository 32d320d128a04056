package domain

import "time"

// Base carries the identity and timestamps shared by every stored record.
// Stores assign the ID and stamps; callers never set them directly.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b Base) RecordID() string { return b.ID }

func (b *Base) Stamp(id string, at time.Time) {
	b.ID = id
	b.CreatedAt = at
	b.UpdatedAt = at
}

func (b *Base) Touch(at time.Time) {
	b.UpdatedAt = at
}

// Regional, Territory and Area form the three-level geographic hierarchy
// used to tag stores and sales.
type Regional struct {
	Base
	Name string `json:"name" validate:"required"`
}

type Territory struct {
	Base
	Name       string `json:"name" validate:"required"`
	RegionalID string `json:"regional_id" validate:"required"`
}

type Area struct {
	Base
	Name        string `json:"name" validate:"required"`
	TerritoryID string `json:"territory_id" validate:"required"`
}

type Supplier struct {
	Base
	Name        string `json:"name" validate:"required"`
	CompanyName string `json:"company_name,omitempty"`
	Address     string `json:"address,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Category    string `json:"category,omitempty"`
	National    string `json:"national,omitempty"`
	Regional    string `json:"regional,omitempty"`
	Territory   string `json:"territory,omitempty"`
	Area        string `json:"area,omitempty"`
	NID         string `json:"nid,omitempty"`
	DOB         string `json:"dob,omitempty"`
}

type Store struct {
	Base
	Name         string `json:"name" validate:"required"`
	OwnerName    string `json:"owner_name,omitempty"`
	NID          string `json:"nid,omitempty"`
	TradeLicense string `json:"trade_license,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Address      string `json:"address,omitempty"`
	RegionalID   string `json:"regional_id,omitempty"`
	TerritoryID  string `json:"territory_id,omitempty"`
	AreaID       string `json:"area_id,omitempty"`
}

type Customer struct {
	Base
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Product struct {
	Base
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	Stock       int    `json:"stock"`
	SupplierID  string `json:"supplier_id,omitempty"`
}

// Purchase is an immutable intake event; one record per purchase.
type Purchase struct {
	Base
	ProductID    string    `json:"product_id"`
	SupplierID   string    `json:"supplier_id"`
	Quantity     int       `json:"quantity"`
	TotalCents   int64     `json:"total_cents"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// ProductUnit is one physical unit of a product, identified by a unique
// fixed-width numeric secure code. Created at purchase time, never deleted.
type ProductUnit struct {
	Base
	ProductID  string `json:"product_id"`
	SecureCode string `json:"secure_code"`
	Used       bool   `json:"used"`
}

// UnitPlacement is the mutable tracking record for a ProductUnit: which store
// holds it, whether it was sold and to whom, and its reward assignment.
// UniqueKey copies the unit's secure code and serves as the external lookup
// key. SaleStatus and RewardStatus only ever progress false to true.
type UnitPlacement struct {
	Base
	ProductID    string `json:"product_id"`
	StoreID      string `json:"store_id,omitempty"`
	CustomerID   string `json:"customer_id,omitempty"`
	SaleStatus   bool   `json:"sale_status"`
	RewardStatus bool   `json:"reward_status"`
	RewardType   string `json:"reward_type,omitempty"`
	UniqueKey    string `json:"unique_key"`
}

type Sale struct {
	Base
	ProductID  string    `json:"product_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Quantity   int       `json:"quantity"`
	TotalCents int64     `json:"total_cents"`
	SaleDate   time.Time `json:"sale_date"`
	StoreID    string    `json:"store_id"`
	Regional   string    `json:"regional,omitempty"`
	Territory  string    `json:"territory,omitempty"`
	Area       string    `json:"area,omitempty"`
}

type StockTransfer struct {
	Base
	ProductID    string    `json:"product_id"`
	FromStoreID  string    `json:"from_store_id"`
	ToStoreID    string    `json:"to_store_id"`
	Quantity     int       `json:"quantity"`
	TransferDate time.Time `json:"transfer_date"`
}

// RewardTier is one row of a product's reward ratio table: QuantityPer100
// units out of every whole group of 100 receive the tier's code.
type RewardTier struct {
	Name           string `json:"name" validate:"required"`
	QuantityPer100 int    `json:"quantity_per_100" validate:"gte=0"`
	Code           string `json:"code" validate:"required"`
}

// RewardSetting is the per-product reward configuration. At most one setting
// exists per product; tiers apply in list order.
type RewardSetting struct {
	Base
	ProductID string       `json:"product_id" validate:"required"`
	Tiers     []RewardTier `json:"tiers" validate:"required,min=1,dive"`
}

// RewardGenerationResult reports one allocation run: how many units were in
// whole groups of 100, how many were actually tagged, and the remainder
// deferred to a future run.
type RewardGenerationResult struct {
	Eligible  int `json:"eligible"`
	Assigned  int `json:"assigned"`
	Remaining int `json:"remaining"`
}

// PoolSummary is a read-side aggregate of a product's serialized units.
type PoolSummary struct {
	ProductID  string    `json:"product_id"`
	TotalUnits int       `json:"total_units"`
	Unassigned int       `json:"unassigned"`
	Sold       int       `json:"sold"`
	Rewarded   int       `json:"rewarded"`
	ComputedAt time.Time `json:"computed_at"`
}

// ListOptions carries the query surface of every collection list call.
// Filters are exact-equality matches keyed by json field name; Sort is
// "field" or "field:desc"; Query is a case-insensitive substring match
// across all string fields.
type ListOptions struct {
	Page    int
	Limit   int
	Query   string
	Filters map[string]string
	Sort    string
}

type ListResult[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

type PurchaseCreateRequest struct {
	ProductID    string    `json:"product_id" validate:"required"`
	SupplierID   string    `json:"supplier_id" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required,gt=0"`
	TotalCents   int64     `json:"total_cents" validate:"gte=0"`
	PurchaseDate time.Time `json:"purchase_date"`
}

type SaleCreateRequest struct {
	ProductID  string    `json:"product_id" validate:"required"`
	CustomerID string    `json:"customer_id,omitempty"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	TotalCents int64     `json:"total_cents" validate:"gte=0"`
	SaleDate   time.Time `json:"sale_date"`
	StoreID    string    `json:"store_id" validate:"required"`
	Regional   string    `json:"regional,omitempty"`
	Territory  string    `json:"territory,omitempty"`
	Area       string    `json:"area,omitempty"`
}

type TransferCreateRequest struct {
	ProductID    string    `json:"product_id" validate:"required"`
	FromStoreID  string    `json:"from_store_id" validate:"required"`
	ToStoreID    string    `json:"to_store_id" validate:"required,nefield=FromStoreID"`
	Quantity     int       `json:"quantity" validate:"required,gt=0"`
	TransferDate time.Time `json:"transfer_date"`
}
