package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/erp-pos/internal/domain/product"
)

const (
	productColumns = `p.id, p.name, p.sku, p.price, p.buying_price, p.stock, p.has_variations`

	listProductsSQL = `SELECT ` + productColumns + `, NULL::INTEGER
		FROM products p ORDER BY p.name, p.id`

	getProductByIDSQL = `SELECT ` + productColumns + `, NULL::INTEGER
		FROM products p WHERE p.id = $1`

	catalogProductsSQL = `SELECT ` + productColumns + `, ws.quantity
		FROM products p
		LEFT JOIN warehouse_stock ws ON ws.product_id = p.id AND ws.warehouse_id = $2
		WHERE p.id = ANY($1)`

	variationColumns = `id, product_id, name, sku, price, buying_price, stock, attributes`

	listVariationsSQL = `SELECT ` + variationColumns + `
		FROM product_variations ORDER BY product_id, name, id`

	variationsByProductsSQL = `SELECT ` + variationColumns + `
		FROM product_variations WHERE product_id = ANY($1) ORDER BY product_id, name, id`

	listPackagingsSQL = `SELECT id, name FROM packagings ORDER BY id`

	listPackagingVariationsSQL = `SELECT id, packaging_id, name
		FROM packaging_variations ORDER BY packaging_id, id`

	insertVariationSQL = `INSERT INTO product_variations
		(id, product_id, name, sku, price, buying_price, stock, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, sku = EXCLUDED.sku, price = EXCLUDED.price,
			buying_price = EXCLUDED.buying_price, stock = EXCLUDED.stock,
			attributes = EXCLUDED.attributes`

	markHasVariationsSQL = `UPDATE products SET has_variations = TRUE WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns every product with its variations.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var (
		products   []product.Product
		variations []product.Variation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, listProductsSQL)
		if err != nil {
			return errors.Wrap(err, "query products")
		}
		if products, err = pgx.CollectRows(rows, scanProduct); err != nil {
			return errors.Wrap(err, "scan products")
		}
		return nil
	})
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, listVariationsSQL)
		if err != nil {
			return errors.Wrap(err, "query variations")
		}
		if variations, err = pgx.CollectRows(rows, scanVariation); err != nil {
			return errors.Wrap(err, "scan variations")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	attachVariations(products, variations)
	return products, nil
}

// GetByID returns a single product with its variations.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	rows, err = r.pool.Query(ctx, variationsByProductsSQL, []string{id})
	if err != nil {
		return nil, errors.Wrapf(err, "get variations of %q", id)
	}
	variations, err := pgx.CollectRows(rows, scanVariation)
	if err != nil {
		return nil, errors.Wrapf(err, "scan variations of %q", id)
	}
	p.Variations = variations
	return &p, nil
}

// Catalog loads the given products, their variations and every packaging.
// Products carry the stock of warehouseID when the warehouse has a row for
// them.
func (r *ProductRepository) Catalog(ctx context.Context, warehouseID string, productIDs []string) (*product.Catalog, error) {
	var (
		products   []product.Product
		variations []product.Variation
		packagings []product.Packaging
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, catalogProductsSQL, productIDs, warehouseID)
		if err != nil {
			return errors.Wrap(err, "query products")
		}
		if products, err = pgx.CollectRows(rows, scanProduct); err != nil {
			return errors.Wrap(err, "scan products")
		}
		return nil
	})
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, variationsByProductsSQL, productIDs)
		if err != nil {
			return errors.Wrap(err, "query variations")
		}
		if variations, err = pgx.CollectRows(rows, scanVariation); err != nil {
			return errors.Wrap(err, "scan variations")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		packagings, err = r.packagings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, withDetail(errors.Wrap(err, "load catalog"))
	}

	attachVariations(products, variations)
	return product.NewCatalog(products, packagings), nil
}

// ImportVariations upserts variations and flags their products as having
// variations, in one transaction.
func (r *ProductRepository) ImportVariations(ctx context.Context, variations []product.Variation) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		seen := make(map[string]struct{})
		ids := make([]string, 0)
		for _, v := range variations {
			attrs := v.Attributes
			if attrs == nil {
				attrs = map[string]string{}
			}
			batch.Queue(insertVariationSQL,
				v.ID, v.ProductID, v.Name, v.SKU, v.Price, v.BuyingPrice, v.Stock, attrs,
			)
			if _, ok := seen[v.ProductID]; !ok {
				seen[v.ProductID] = struct{}{}
				ids = append(ids, v.ProductID)
			}
		}
		batch.Queue(markHasVariationsSQL, ids)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return withDetail(errors.Wrap(err, "insert variations"))
		}
		return nil
	})
}

func (r *ProductRepository) packagings(ctx context.Context) ([]product.Packaging, error) {
	rows, err := r.pool.Query(ctx, listPackagingsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query packagings")
	}
	packagings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Packaging, error) {
		var p product.Packaging
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan packagings")
	}

	rows, err = r.pool.Query(ctx, listPackagingVariationsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query packaging variations")
	}
	pvs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.PackagingVariation, error) {
		var pv product.PackagingVariation
		err := row.Scan(&pv.ID, &pv.PackagingID, &pv.Name)
		return pv, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan packaging variations")
	}

	idx := make(map[string]int, len(packagings))
	for i := range packagings {
		idx[packagings[i].ID] = i
	}
	for _, pv := range pvs {
		if i, ok := idx[pv.PackagingID]; ok {
			packagings[i].Variations = append(packagings[i].Variations, pv)
		}
	}
	return packagings, nil
}

func attachVariations(products []product.Product, variations []product.Variation) {
	idx := make(map[string]int, len(products))
	for i := range products {
		idx[products[i].ID] = i
	}
	for _, v := range variations {
		if i, ok := idx[v.ProductID]; ok {
			products[i].Variations = append(products[i].Variations, v)
		}
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p              product.Product
		stock          int32
		warehouseStock *int32
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Price, &p.BuyingPrice, &stock, &p.HasVariations,
		&warehouseStock,
	)
	p.Stock = int(stock)
	if warehouseStock != nil {
		ws := int(*warehouseStock)
		p.WarehouseStock = &ws
	}
	return p, err
}

func scanVariation(row pgx.CollectableRow) (product.Variation, error) {
	var (
		v     product.Variation
		stock int32
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.BuyingPrice, &stock, &v.Attributes,
	)
	v.Stock = int(stock)
	return v, err
}
