package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/store"
)

func seedUnits(t *testing.T, s *Store, productID, storeID string, count int) {
	t.Helper()
	units := make([]domain.ProductUnit, 0, count)
	placements := make([]domain.UnitPlacement, 0, count)
	for i := 0; i < count; i++ {
		code := fmt.Sprintf("%09d", i+1)
		units = append(units, domain.ProductUnit{ProductID: productID, SecureCode: code})
		placements = append(placements, domain.UnitPlacement{
			ProductID: productID,
			StoreID:   storeID,
			UniqueKey: code,
		})
	}
	if err := s.CreateUnitBatch(context.Background(), units, placements); err != nil {
		t.Fatalf("create unit batch: %v", err)
	}
}

func TestCollectionCRUDLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Customers().Create(ctx, domain.Customer{Name: "Mizanur Rahman", Phone: "01911000001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be stamped, got %+v", created)
	}

	fetched, err := s.Customers().GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Name != "Mizanur Rahman" {
		t.Fatalf("unexpected name %q", fetched.Name)
	}

	updated, err := s.Customers().Update(ctx, created.ID, func(c *domain.Customer) error {
		c.Phone = "01911000099"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != "01911000099" {
		t.Fatalf("update did not apply, got %q", updated.Phone)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) && !updated.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("expected updated_at to move forward")
	}

	if err := s.Customers().Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Customers().GetByID(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCollectionUpdateMissingRecord(t *testing.T) {
	s := New()
	_, err := s.Products().Update(context.Background(), "nope", func(p *domain.Product) error {
		p.Stock++
		return nil
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDefaultsToCreationOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, name := range []string{"Khulna", "Barishal", "Rajshahi"} {
		if _, err := s.Regionals().Create(ctx, domain.Regional{Name: name}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	result, err := s.Regionals().List(ctx, domain.ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected 3 regionals, got %d", result.Total)
	}
	got := []string{result.Items[0].Name, result.Items[1].Name, result.Items[2].Name}
	want := []string{"Khulna", "Barishal", "Rajshahi"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("creation order broken: got %v want %v", got, want)
		}
	}
}

func TestListSearchFilterSortPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()
	supplierA := "sup-a"
	for i := 0; i < 12; i++ {
		supplier := supplierA
		if i%2 == 1 {
			supplier = "sup-b"
		}
		_, err := s.Products().Create(ctx, domain.Product{
			Name:       fmt.Sprintf("Tea Pack %02d", i),
			PriceCents: int64(1000 * (12 - i)),
			SupplierID: supplier,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	filtered, err := s.Products().List(ctx, domain.ListOptions{
		Filters: map[string]string{"supplier_id": supplierA},
		Sort:    "price_cents:desc",
		Page:    1,
		Limit:   4,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if filtered.Total != 6 || filtered.TotalPages != 2 {
		t.Fatalf("expected 6 matches over 2 pages, got total=%d pages=%d", filtered.Total, filtered.TotalPages)
	}
	if len(filtered.Items) != 4 {
		t.Fatalf("expected page of 4, got %d", len(filtered.Items))
	}
	for i := 1; i < len(filtered.Items); i++ {
		if filtered.Items[i-1].PriceCents < filtered.Items[i].PriceCents {
			t.Fatalf("descending sort broken at %d", i)
		}
	}

	searched, err := s.Products().List(ctx, domain.ListOptions{Query: "pack 03"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if searched.Total != 1 || searched.Items[0].Name != "Tea Pack 03" {
		t.Fatalf("search mismatch: %+v", searched)
	}
}

func TestMarkSoldScansCreationOrderAndStopsEarly(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUnits(t, s, "prod-1", "store-1", 5)
	seedUnits(t, s, "prod-1", "store-2", 3)

	marked, err := s.MarkSold(ctx, "prod-1", "store-1", 3, "cust-1")
	if err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	if marked != 3 {
		t.Fatalf("expected 3 marked, got %d", marked)
	}

	placements, err := s.Placements().List(ctx, domain.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("list placements: %v", err)
	}
	for i, p := range placements.Items {
		wantSold := i < 3
		if p.SaleStatus != wantSold {
			t.Fatalf("placement %d sold=%v, want %v", i, p.SaleStatus, wantSold)
		}
		if wantSold && p.CustomerID != "cust-1" {
			t.Fatalf("placement %d missing customer", i)
		}
	}
}

func TestMarkSoldPartialWhenShort(t *testing.T) {
	s := New()
	seedUnits(t, s, "prod-1", "store-1", 3)

	marked, err := s.MarkSold(context.Background(), "prod-1", "store-1", 5, "cust-1")
	if err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	if marked != 3 {
		t.Fatalf("expected partial mark of 3, got %d", marked)
	}
}

func TestMarkSoldClaimsUnplacedUnits(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUnits(t, s, "prod-1", "", 3)

	marked, err := s.MarkSold(ctx, "prod-1", "store-9", 2, "cust-1")
	if err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked, got %d", marked)
	}

	placements, _ := s.Placements().List(ctx, domain.ListOptions{Limit: 10})
	for i, p := range placements.Items {
		if i < 2 && p.StoreID != "store-9" {
			t.Fatalf("placement %d should be claimed by store-9, got %q", i, p.StoreID)
		}
		if i == 2 && p.StoreID != "" {
			t.Fatalf("unmarked placement should stay unplaced")
		}
	}
}

func TestTransferUnitsSkipsSold(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUnits(t, s, "prod-1", "store-1", 4)

	if _, err := s.MarkSold(ctx, "prod-1", "store-1", 2, "cust-1"); err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	moved, err := s.TransferUnits(ctx, "prod-1", "store-1", "store-2", 4)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 unsold units moved, got %d", moved)
	}

	placements, _ := s.Placements().List(ctx, domain.ListOptions{
		Filters: map[string]string{"store_id": "store-2"},
		Limit:   100,
	})
	if placements.Total != 2 {
		t.Fatalf("expected 2 placements at store-2, got %d", placements.Total)
	}
}

func TestMarkRewardedIncludesSoldUnits(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUnits(t, s, "prod-1", "store-1", 4)

	if _, err := s.MarkSold(ctx, "prod-1", "store-1", 4, "cust-1"); err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	tagged, err := s.MarkRewarded(ctx, "prod-1", 2, "A")
	if err != nil {
		t.Fatalf("mark rewarded: %v", err)
	}
	if tagged != 2 {
		t.Fatalf("expected 2 tagged, got %d", tagged)
	}

	count, err := s.CountUnassigned(ctx, "prod-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unassigned, got %d", count)
	}
}

func TestSecureCodeExists(t *testing.T) {
	s := New()
	seedUnits(t, s, "prod-1", "store-1", 1)

	taken, err := s.SecureCodeExists(context.Background(), "000000001")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !taken {
		t.Fatalf("expected seeded code to exist")
	}
	free, err := s.SecureCodeExists(context.Background(), "999999999")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if free {
		t.Fatalf("expected unseeded code to be free")
	}
}

func TestFindRewardSettingByProductReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.RewardSettings().Create(ctx, domain.RewardSetting{
		ProductID: "prod-1",
		Tiers: []domain.RewardTier{
			{Name: "Gift", QuantityPer100: 10, Code: "A"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := s.FindRewardSettingByProduct(ctx, "prod-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	first.Tiers[0].Code = "MUTATED"

	second, err := s.FindRewardSettingByProduct(ctx, "prod-1")
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if second.Tiers[0].Code != "A" {
		t.Fatalf("stored tiers were mutated through a returned copy")
	}

	if _, err := s.FindRewardSettingByProduct(ctx, "prod-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestNewSeededHasWorkingDirectory(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	products, err := s.Products().List(ctx, domain.ListOptions{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if products.Total == 0 {
		t.Fatalf("expected seeded products")
	}
	stores, err := s.Stores().List(ctx, domain.ListOptions{})
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if stores.Total < 2 {
		t.Fatalf("expected at least two seeded stores, got %d", stores.Total)
	}
}
