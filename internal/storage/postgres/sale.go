package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/sale"
)

const (
	insertSaleSQL = `INSERT INTO sales (
			id, customer_id, customer_name, warehouse_id, warehouse_name, payment_method,
			subtotal, discount_value, discount_type, discount_amount, tax_rate, tax_amount,
			grand_total, status, notes, created_by, promo_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at`

	// redeemPromoSQL counts one use only while the code is active, inside its
	// window and below its limit, so concurrent sales cannot overshoot it.
	redeemPromoSQL = `UPDATE promo_codes SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE
			AND (max_uses = 0 OR uses < max_uses)
			AND (valid_from IS NULL OR valid_from <= $2)
			AND (valid_until IS NULL OR valid_until >= $2)`

	insertSaleItemSQL = `INSERT INTO sale_items (
			sale_id, line_no, product_id, product_name, variation_id, variation_name,
			packaging_id, packaging_name, packaging_variation_id, packaging_variation_name,
			quantity, unit_price, discount, discount_type, discount_amount, tax_amount,
			total, is_free_gift)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	listRecentSalesSQL = `SELECT id, customer_id, customer_name, warehouse_id, warehouse_name,
			payment_method, subtotal, discount_value, discount_type, discount_amount,
			tax_rate, tax_amount, grand_total, status, notes, created_by, promo_code, created_at
		FROM sales ORDER BY created_at DESC, id LIMIT $1`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// CreateSale writes the sale and its lines in one transaction and redeems
// the record's promo code in the same transaction. A code that can no longer
// be redeemed fails the sale with sale.ErrPromoUnavailable. PostgreSQL errors
// are returned as *sale.DetailError.
func (r *SaleRepository) CreateSale(ctx context.Context, rec *sale.Record, lines []sale.LineRecord) (*sale.Persisted, error) {
	var out sale.Persisted
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if rec.PromoCode != "" {
			tag, err := tx.Exec(ctx, redeemPromoSQL, rec.PromoCode, rec.CreatedAt)
			if err != nil {
				return errors.Wrapf(err, "redeem promo code %q", rec.PromoCode)
			}
			if tag.RowsAffected() == 0 {
				return sale.ErrPromoUnavailable
			}
		}

		err := tx.QueryRow(ctx, insertSaleSQL,
			rec.ID, rec.CustomerID, rec.CustomerName, rec.WarehouseID, rec.WarehouseName,
			rec.PaymentMethod, rec.Subtotal, rec.DiscountValue, string(rec.DiscountType),
			rec.DiscountAmount, rec.TaxRate, rec.TaxAmount, rec.GrandTotal, rec.Status,
			rec.Notes, rec.CreatedBy, rec.PromoCode, rec.CreatedAt,
		).Scan(&out.ID, &out.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert sale")
		}

		batch := &pgx.Batch{}
		for i, l := range lines {
			batch.Queue(insertSaleItemSQL,
				rec.ID, i+1, l.ProductID, l.ProductName, l.VariationID, l.VariationName,
				l.PackagingID, l.PackagingName, l.PackagingVariationID, l.PackagingVariationName,
				l.Quantity, l.UnitPrice, l.Discount, string(l.DiscountType), l.DiscountAmount,
				l.TaxAmount, l.Total, l.IsFreeGift,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert sale items")
		}
		return nil
	})
	if err != nil {
		return nil, withDetail(errors.Wrapf(err, "create sale %q", rec.ID))
	}
	return &out, nil
}

// ListRecent returns the newest sales, newest first.
func (r *SaleRepository) ListRecent(ctx context.Context, limit int) ([]sale.Record, error) {
	rows, err := r.pool.Query(ctx, listRecentSalesSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list recent sales")
	}
	records, err := pgx.CollectRows(rows, scanSale)
	if err != nil {
		return nil, errors.Wrap(err, "scan sales")
	}
	return records, nil
}

func scanSale(row pgx.CollectableRow) (sale.Record, error) {
	var (
		rec          sale.Record
		discountType string
	)
	err := row.Scan(
		&rec.ID, &rec.CustomerID, &rec.CustomerName, &rec.WarehouseID, &rec.WarehouseName,
		&rec.PaymentMethod, &rec.Subtotal, &rec.DiscountValue, &discountType, &rec.DiscountAmount,
		&rec.TaxRate, &rec.TaxAmount, &rec.GrandTotal, &rec.Status, &rec.Notes, &rec.CreatedBy,
		&rec.PromoCode, &rec.CreatedAt,
	)
	rec.DiscountType = cart.DiscountType(discountType)
	return rec, err
}
