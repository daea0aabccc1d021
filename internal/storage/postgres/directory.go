package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/erp-pos/internal/domain/product"
	"github.com/xenking/erp-pos/internal/domain/sale"
)

const (
	getWarehouseSQL = `SELECT id, name FROM warehouses WHERE id = $1`
	getCustomerSQL  = `SELECT id, name FROM customers WHERE id = $1`

	upsertWarehouseSQL = `INSERT INTO warehouses (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	upsertCustomerSQL = `INSERT INTO customers (id, name, phone) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone`
	upsertProductSQL = `INSERT INTO products (id, name, sku, price, buying_price, stock, has_variations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, sku = EXCLUDED.sku, price = EXCLUDED.price,
			buying_price = EXCLUDED.buying_price, stock = EXCLUDED.stock,
			has_variations = EXCLUDED.has_variations`
	upsertPackagingSQL = `INSERT INTO packagings (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	upsertPackagingVariationSQL = `INSERT INTO packaging_variations (id, packaging_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET packaging_id = EXCLUDED.packaging_id, name = EXCLUDED.name`
	setWarehouseStockSQL = `INSERT INTO warehouse_stock (warehouse_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`
)

// DirectoryRepository resolves and maintains warehouses, customers and the
// catalog master data.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository returns a DirectoryRepository that uses the given pool.
func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// Warehouse returns the warehouse with its display name.
func (r *DirectoryRepository) Warehouse(ctx context.Context, id string) (sale.Party, error) {
	return r.party(ctx, getWarehouseSQL, id)
}

// Customer returns the customer with its display name.
func (r *DirectoryRepository) Customer(ctx context.Context, id string) (sale.Party, error) {
	return r.party(ctx, getCustomerSQL, id)
}

func (r *DirectoryRepository) party(ctx context.Context, query, id string) (sale.Party, error) {
	var p sale.Party
	if err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sale.Party{}, sale.ErrUnknownParty
		}
		return sale.Party{}, errors.Wrapf(err, "get %q", id)
	}
	return p, nil
}

// UpsertWarehouse creates or renames a warehouse.
func (r *DirectoryRepository) UpsertWarehouse(ctx context.Context, p sale.Party) error {
	if _, err := r.pool.Exec(ctx, upsertWarehouseSQL, p.ID, p.Name); err != nil {
		return errors.Wrapf(err, "upsert warehouse %q", p.ID)
	}
	return nil
}

// UpsertCustomer creates or updates a customer.
func (r *DirectoryRepository) UpsertCustomer(ctx context.Context, p sale.Party, phone string) error {
	if _, err := r.pool.Exec(ctx, upsertCustomerSQL, p.ID, p.Name, phone); err != nil {
		return errors.Wrapf(err, "upsert customer %q", p.ID)
	}
	return nil
}

// UpsertProduct creates or replaces a product row. Variations are written
// separately through ProductRepository.ImportVariations.
func (r *DirectoryRepository) UpsertProduct(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.SKU, p.Price, p.BuyingPrice, p.Stock, p.HasVariations,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

// UpsertPackaging creates or replaces a packaging and its variations.
func (r *DirectoryRepository) UpsertPackaging(ctx context.Context, p product.Packaging) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertPackagingSQL, p.ID, p.Name); err != nil {
			return errors.Wrapf(err, "upsert packaging %q", p.ID)
		}
		for _, v := range p.Variations {
			if _, err := tx.Exec(ctx, upsertPackagingVariationSQL, v.ID, p.ID, v.Name); err != nil {
				return errors.Wrapf(err, "upsert packaging variation %q", v.ID)
			}
		}
		return nil
	})
}

// SetWarehouseStock sets the stock of a product in one warehouse.
func (r *DirectoryRepository) SetWarehouseStock(ctx context.Context, warehouseID, productID string, quantity int) error {
	if _, err := r.pool.Exec(ctx, setWarehouseStockSQL, warehouseID, productID, quantity); err != nil {
		return errors.Wrapf(err, "set stock of %q in %q", productID, warehouseID)
	}
	return nil
}
