// Package memory is the in-memory store.Repository used for development and
// tests. Every collection keeps its records in a creation-order slice, which
// is what makes the registry scan operations deterministic.
package memory

import (
	"context"
	"sync"
	"time"

	"distrigo/backend/internal/code"
	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/store"
)

type stampable interface {
	Stamp(id string, at time.Time)
	Touch(at time.Time)
}

// collection is the generic store.Collection implementation. All collections
// of one Store share a single lock so multi-collection operations (unit
// issuance) stay consistent.
type collection[T store.Record] struct {
	mu    *sync.RWMutex
	items []T
	now   func() time.Time
	clone func(T) T
}

func newCollection[T store.Record](mu *sync.RWMutex, now func() time.Time) *collection[T] {
	return &collection[T]{
		mu:    mu,
		now:   now,
		clone: func(item T) T { return item },
	}
}

func (c *collection[T]) List(_ context.Context, opts domain.ListOptions) (domain.ListResult[T], error) {
	c.mu.RLock()
	snapshot := make([]T, len(c.items))
	for i, item := range c.items {
		snapshot[i] = c.clone(item)
	}
	c.mu.RUnlock()

	return store.ApplyOptions(snapshot, opts), nil
}

func (c *collection[T]) GetByID(_ context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, item := range c.items {
		if item.RecordID() == id {
			found := c.clone(item)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (c *collection[T]) Create(_ context.Context, item T) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertLocked(&item)
	created := c.clone(item)
	return &created, nil
}

func (c *collection[T]) Update(_ context.Context, id string, apply func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].RecordID() != id {
			continue
		}
		updated := c.clone(c.items[i])
		if err := apply(&updated); err != nil {
			return nil, err
		}
		any(&updated).(stampable).Touch(c.now())
		c.items[i] = updated
		result := c.clone(updated)
		return &result, nil
	}
	return nil, store.ErrNotFound
}

func (c *collection[T]) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].RecordID() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// insertLocked stamps and appends; the caller holds the write lock.
func (c *collection[T]) insertLocked(item *T) {
	any(item).(stampable).Stamp(code.NewID(), c.now())
	c.items = append(c.items, *item)
}

type Store struct {
	mu sync.RWMutex

	regionals      *collection[domain.Regional]
	territories    *collection[domain.Territory]
	areas          *collection[domain.Area]
	suppliers      *collection[domain.Supplier]
	stores         *collection[domain.Store]
	customers      *collection[domain.Customer]
	products       *collection[domain.Product]
	purchases      *collection[domain.Purchase]
	units          *collection[domain.ProductUnit]
	placements     *collection[domain.UnitPlacement]
	sales          *collection[domain.Sale]
	transfers      *collection[domain.StockTransfer]
	rewardSettings *collection[domain.RewardSetting]
}

func New() *Store {
	s := &Store{}
	now := func() time.Time { return time.Now().UTC() }

	s.regionals = newCollection[domain.Regional](&s.mu, now)
	s.territories = newCollection[domain.Territory](&s.mu, now)
	s.areas = newCollection[domain.Area](&s.mu, now)
	s.suppliers = newCollection[domain.Supplier](&s.mu, now)
	s.stores = newCollection[domain.Store](&s.mu, now)
	s.customers = newCollection[domain.Customer](&s.mu, now)
	s.products = newCollection[domain.Product](&s.mu, now)
	s.purchases = newCollection[domain.Purchase](&s.mu, now)
	s.units = newCollection[domain.ProductUnit](&s.mu, now)
	s.placements = newCollection[domain.UnitPlacement](&s.mu, now)
	s.sales = newCollection[domain.Sale](&s.mu, now)
	s.transfers = newCollection[domain.StockTransfer](&s.mu, now)
	s.rewardSettings = newCollection[domain.RewardSetting](&s.mu, now)

	s.rewardSettings.clone = cloneRewardSetting

	return s
}

// NewSeeded returns a store preloaded with a small demo data set: the
// geographic hierarchy, one supplier, two stores, two customers and two
// products. Workflows and the HTTP handlers are exercised against it in
// tests and local development.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	dhaka, _ := s.regionals.Create(ctx, domain.Regional{Name: "Dhaka"})
	s.regionals.Create(ctx, domain.Regional{Name: "Chattogram"})

	gazipur, _ := s.territories.Create(ctx, domain.Territory{Name: "Gazipur", RegionalID: dhaka.ID})
	s.territories.Create(ctx, domain.Territory{Name: "Narayanganj", RegionalID: dhaka.ID})

	tongi, _ := s.areas.Create(ctx, domain.Area{Name: "Tongi", TerritoryID: gazipur.ID})
	s.areas.Create(ctx, domain.Area{Name: "Sreepur", TerritoryID: gazipur.ID})

	supplier, _ := s.suppliers.Create(ctx, domain.Supplier{
		Name:        "Rahim Traders",
		CompanyName: "Rahim Trading Co.",
		Address:     "Station Road, Tongi, Gazipur",
		Mobile:      "01711000001",
		Email:       "contact@rahimtraders.example",
		Category:    "distributor",
	})

	s.stores.Create(ctx, domain.Store{
		Name:        "Tongi Bazar Store",
		OwnerName:   "Abdul Karim",
		Mobile:      "01811000001",
		Address:     "College Gate, Tongi",
		RegionalID:  dhaka.ID,
		TerritoryID: gazipur.ID,
		AreaID:      tongi.ID,
	})
	s.stores.Create(ctx, domain.Store{
		Name:        "Station Road Store",
		OwnerName:   "Shafiqul Islam",
		Mobile:      "01811000002",
		Address:     "Station Road, Tongi",
		RegionalID:  dhaka.ID,
		TerritoryID: gazipur.ID,
		AreaID:      tongi.ID,
	})

	s.customers.Create(ctx, domain.Customer{
		Name:  "Mizanur Rahman",
		Phone: "01911000001",
		Email: "mizan@example.com",
	})
	s.customers.Create(ctx, domain.Customer{
		Name:  "Farida Akter",
		Phone: "01911000002",
	})

	s.products.Create(ctx, domain.Product{
		Name:        "Premium Tea 500g",
		Description: "Loose leaf black tea",
		PriceCents:  45000,
		SupplierID:  supplier.ID,
	})
	s.products.Create(ctx, domain.Product{
		Name:        "Soybean Oil 5L",
		Description: "Refined soybean oil jar",
		PriceCents:  82000,
		SupplierID:  supplier.ID,
	})

	return s
}

func (s *Store) Regionals() store.Collection[domain.Regional] { return s.regionals }
func (s *Store) Territories() store.Collection[domain.Territory] { return s.territories }
func (s *Store) Areas() store.Collection[domain.Area] { return s.areas }
func (s *Store) Suppliers() store.Collection[domain.Supplier] { return s.suppliers }
func (s *Store) Stores() store.Collection[domain.Store] { return s.stores }
func (s *Store) Customers() store.Collection[domain.Customer] { return s.customers }
func (s *Store) Products() store.Collection[domain.Product] { return s.products }
func (s *Store) Purchases() store.Collection[domain.Purchase] { return s.purchases }
func (s *Store) Units() store.Collection[domain.ProductUnit] { return s.units }
func (s *Store) Placements() store.Collection[domain.UnitPlacement] { return s.placements }
func (s *Store) Sales() store.Collection[domain.Sale] { return s.sales }
func (s *Store) Transfers() store.Collection[domain.StockTransfer] { return s.transfers }
func (s *Store) RewardSettings() store.Collection[domain.RewardSetting] { return s.rewardSettings }

func (s *Store) SecureCodeExists(_ context.Context, codeValue string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, unit := range s.units.items {
		if unit.SecureCode == codeValue {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateUnitBatch(_ context.Context, units []domain.ProductUnit, placements []domain.UnitPlacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range units {
		s.units.insertLocked(&units[i])
	}
	for i := range placements {
		s.placements.insertLocked(&placements[i])
	}
	return nil
}

func (s *Store) MarkSold(_ context.Context, productID, storeID string, quantity int, customerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	items := s.placements.items
	for i := range items {
		if marked >= quantity {
			break
		}
		if items[i].ProductID != productID || items[i].SaleStatus {
			continue
		}
		if items[i].StoreID != storeID && items[i].StoreID != "" {
			continue
		}
		items[i].StoreID = storeID
		items[i].SaleStatus = true
		items[i].CustomerID = customerID
		items[i].Touch(s.placements.now())
		marked++
	}
	return marked, nil
}

func (s *Store) TransferUnits(_ context.Context, productID, fromStoreID, toStoreID string, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	items := s.placements.items
	for i := range items {
		if moved >= quantity {
			break
		}
		if items[i].ProductID != productID || items[i].SaleStatus {
			continue
		}
		if items[i].StoreID != fromStoreID && items[i].StoreID != "" {
			continue
		}
		items[i].StoreID = toStoreID
		items[i].Touch(s.placements.now())
		moved++
	}
	return moved, nil
}

func (s *Store) MarkRewarded(_ context.Context, productID string, quantity int, tierCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagged := 0
	items := s.placements.items
	for i := range items {
		if tagged >= quantity {
			break
		}
		if items[i].ProductID != productID || items[i].RewardStatus {
			continue
		}
		items[i].RewardStatus = true
		items[i].RewardType = tierCode
		items[i].Touch(s.placements.now())
		tagged++
	}
	return tagged, nil
}

func (s *Store) CountUnassigned(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, placement := range s.placements.items {
		if placement.ProductID == productID && !placement.RewardStatus {
			count++
		}
	}
	return count, nil
}

func (s *Store) FindRewardSettingByProduct(_ context.Context, productID string) (*domain.RewardSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, setting := range s.rewardSettings.items {
		if setting.ProductID == productID {
			found := cloneRewardSetting(setting)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func cloneRewardSetting(src domain.RewardSetting) domain.RewardSetting {
	dup := src
	tiers := make([]domain.RewardTier, len(src.Tiers))
	copy(tiers, src.Tiers)
	dup.Tiers = tiers
	return dup
}
