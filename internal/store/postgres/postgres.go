// Package postgres implements store.Repository over PostgreSQL. Each
// collection lives in its own table as a jsonb document keyed by id, with a
// bigserial sequence column preserving creation order for the registry scans.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"distrigo/backend/internal/code"
	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/store"
)

type stampable interface {
	Stamp(id string, at time.Time)
	Touch(at time.Time)
}

type Store struct {
	db *sql.DB

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

var tables = []string{
	"regionals",
	"territories",
	"areas",
	"suppliers",
	"stores",
	"customers",
	"products",
	"purchases",
	"product_units",
	"unit_placements",
	"sales",
	"stock_transfers",
	"reward_settings",
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	s.regionals = newCollection[domain.Regional](db, "regionals")
	s.territories = newCollection[domain.Territory](db, "territories")
	s.areas = newCollection[domain.Area](db, "areas")
	s.suppliers = newCollection[domain.Supplier](db, "suppliers")
	s.stores = newCollection[domain.Store](db, "stores")
	s.customers = newCollection[domain.Customer](db, "customers")
	s.products = newCollection[domain.Product](db, "products")
	s.purchases = newCollection[domain.Purchase](db, "purchases")
	s.units = newCollection[domain.ProductUnit](db, "product_units")
	s.placements = newCollection[domain.UnitPlacement](db, "unit_placements")
	s.sales = newCollection[domain.Sale](db, "sales")
	s.transfers = newCollection[domain.StockTransfer](db, "stock_transfers")
	s.rewardSettings = newCollection[domain.RewardSetting](db, "reward_settings")

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range tables {
		_, err := db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id  TEXT PRIMARY KEY,
				seq BIGSERIAL,
				doc JSONB NOT NULL
			)
		`, table))
		if err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	_, err := db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS product_units_secure_code
		ON product_units ((doc->>'secure_code'))
	`)
	if err != nil {
		return fmt.Errorf("ensure secure code index: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS unit_placements_product
		ON unit_placements ((doc->>'product_id'))
	`)
	if err != nil {
		return fmt.Errorf("ensure placement index: %w", err)
	}
	return nil
}

// collection implements store.Collection for one table. List pulls the full
// table in seq order and applies the shared query engine; the collections are
// admin-panel sized, not event streams.
type collection[T store.Record] struct {
	db    *sql.DB
	table string
}

func newCollection[T store.Record](db *sql.DB, table string) *collection[T] {
	return &collection[T]{db: db, table: table}
}

func (c *collection[T]) loadAll(ctx context.Context) ([]T, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY seq`, c.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]T, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *collection[T]) List(ctx context.Context, opts domain.ListOptions) (domain.ListResult[T], error) {
	items, err := c.loadAll(ctx)
	if err != nil {
		return domain.ListResult[T]{}, err
	}
	return store.ApplyOptions(items, opts), nil
}

func (c *collection[T]) GetByID(ctx context.Context, id string) (*T, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, c.table), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *collection[T]) Create(ctx context.Context, item T) (*T, error) {
	any(&item).(stampable).Stamp(code.NewID(), time.Now().UTC())
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, c.table),
		item.RecordID(), raw)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *collection[T]) Update(ctx context.Context, id string, apply func(*T) error) (*T, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1 FOR UPDATE`, c.table), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	if err := apply(&item); err != nil {
		return nil, err
	}
	any(&item).(stampable).Touch(time.Now().UTC())

	updated, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = $2 WHERE id = $1`, c.table), id, updated); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
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

func (s *Store) SecureCodeExists(ctx context.Context, codeValue string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM product_units WHERE doc->>'secure_code' = $1)
	`, codeValue).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateUnitBatch(ctx context.Context, units []domain.ProductUnit, placements []domain.UnitPlacement) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range units {
		units[i].Stamp(code.NewID(), now)
		raw, err := json.Marshal(units[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_units (id, doc) VALUES ($1, $2)`, units[i].ID, raw); err != nil {
			return err
		}
	}
	for i := range placements {
		placements[i].Stamp(code.NewID(), now)
		raw, err := json.Marshal(placements[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unit_placements (id, doc) VALUES ($1, $2)`, placements[i].ID, raw); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// scanPlacements locks up to limit matching placements in seq order and
// applies mutate to each inside one transaction.
func (s *Store) scanPlacements(ctx context.Context, where string, args []any, limit int, mutate func(*domain.UnitPlacement)) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		SELECT id, doc FROM unit_placements
		WHERE %s
		ORDER BY seq
		LIMIT %d
		FOR UPDATE
	`, where, limit)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	type locked struct {
		id        string
		placement domain.UnitPlacement
	}
	batch := make([]locked, 0, limit)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, err
		}
		var p domain.UnitPlacement
		if err := json.Unmarshal(raw, &p); err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, locked{id: id, placement: p})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	now := time.Now().UTC()
	for i := range batch {
		mutate(&batch[i].placement)
		batch[i].placement.Touch(now)
		raw, err := json.Marshal(batch[i].placement)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE unit_placements SET doc = $2 WHERE id = $1`, batch[i].id, raw); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (s *Store) MarkSold(ctx context.Context, productID, storeID string, quantity int, customerID string) (int, error) {
	return s.scanPlacements(ctx,
		`doc->>'product_id' = $1 AND COALESCE(doc->>'store_id', '') IN ($2, '') AND (doc->>'sale_status')::boolean = false`,
		[]any{productID, storeID}, quantity,
		func(p *domain.UnitPlacement) {
			p.StoreID = storeID
			p.SaleStatus = true
			p.CustomerID = customerID
		})
}

func (s *Store) TransferUnits(ctx context.Context, productID, fromStoreID, toStoreID string, quantity int) (int, error) {
	return s.scanPlacements(ctx,
		`doc->>'product_id' = $1 AND COALESCE(doc->>'store_id', '') IN ($2, '') AND (doc->>'sale_status')::boolean = false`,
		[]any{productID, fromStoreID}, quantity,
		func(p *domain.UnitPlacement) {
			p.StoreID = toStoreID
		})
}

func (s *Store) MarkRewarded(ctx context.Context, productID string, quantity int, tierCode string) (int, error) {
	return s.scanPlacements(ctx,
		`doc->>'product_id' = $1 AND (doc->>'reward_status')::boolean = false`,
		[]any{productID}, quantity,
		func(p *domain.UnitPlacement) {
			p.RewardStatus = true
			p.RewardType = tierCode
		})
}

func (s *Store) CountUnassigned(ctx context.Context, productID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM unit_placements
		WHERE doc->>'product_id' = $1 AND (doc->>'reward_status')::boolean = false
	`, productID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) FindRewardSettingByProduct(ctx context.Context, productID string) (*domain.RewardSetting, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM reward_settings
		WHERE doc->>'product_id' = $1
		ORDER BY seq
		LIMIT 1
	`, productID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var setting domain.RewardSetting
	if err := json.Unmarshal(raw, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}
