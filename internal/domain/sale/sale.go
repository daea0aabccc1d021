// Package sale turns a priced cart into a persisted sale.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/product"
)

// StatusCompleted is the status of a sale created at the point of sale.
const StatusCompleted = "completed"

// Party is a referenced entity with its display name.
type Party struct {
	ID   string
	Name string
}

// Details are the non-cart inputs of a sale.
type Details struct {
	Warehouse     Party
	Customer      Party
	PaymentMethod string
	Notes         string
	CreatedBy     string
}

// Record is a persisted sale header. Customer and warehouse names are
// denormalized at submission time.
type Record struct {
	ID            string
	CustomerID    string
	CustomerName  string
	WarehouseID   string
	WarehouseName string
	PaymentMethod string

	Subtotal       decimal.Decimal
	DiscountValue  decimal.Decimal
	DiscountType   cart.DiscountType
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal

	Status    string
	Notes     string
	CreatedBy string
	PromoCode string
	CreatedAt time.Time
}

// LineRecord is a persisted sale line.
type LineRecord struct {
	SaleID                 string
	ProductID              string
	ProductName            string
	VariationID            string
	VariationName          string
	PackagingID            string
	PackagingName          string
	PackagingVariationID   string
	PackagingVariationName string

	Quantity       int
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	DiscountType   cart.DiscountType
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	IsFreeGift     bool
}

// Persisted is what the repository reports after a successful write.
type Persisted struct {
	ID        string
	CreatedAt time.Time
}

// Repository persists sales. CreateSale must write the record and all of
// its lines atomically, and must redeem the record's promo code in the same
// write, returning ErrPromoUnavailable when it cannot.
type Repository interface {
	CreateSale(ctx context.Context, r *Record, lines []LineRecord) (*Persisted, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

// CatalogProvider loads current catalog data for the products in a cart.
type CatalogProvider interface {
	Catalog(ctx context.Context, warehouseID string, productIDs []string) (*product.Catalog, error)
}

// CacheInvalidator marks cached sale listings stale.
type CacheInvalidator interface {
	Invalidate()
}

// Level is the severity of a user notification.
type Level string

// Notification levels.
const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message.
type Notification struct {
	Level   Level
	Message string
}

// Notifier presents messages to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Handle is the cart a checkout reads from and clears on success.
type Handle interface {
	Snapshot() cart.Snapshot
	Clear()
}
