// Package handler serves the point-of-sale JSON API on net/http.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/erp-pos/internal/cartstore"
	"github.com/xenking/erp-pos/internal/domain/auth"
	"github.com/xenking/erp-pos/internal/domain/product"
	"github.com/xenking/erp-pos/internal/domain/promo"
	"github.com/xenking/erp-pos/internal/domain/sale"
)

// Checkouter submits the contents of a cart as a sale.
type Checkouter interface {
	Checkout(ctx context.Context, h sale.Handle, d sale.Details) sale.Result
}

// RecentSales lists the most recent sales, newest first.
type RecentSales interface {
	ListRecent(ctx context.Context, limit int) ([]sale.Record, error)
}

// Directory resolves warehouse and customer ids to display names. Unknown
// ids yield sale.ErrUnknownParty.
type Directory interface {
	Warehouse(ctx context.Context, id string) (sale.Party, error)
	Customer(ctx context.Context, id string) (sale.Party, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MaxOpenCarts caps the number of carts held in memory. Zero means no cap.
	MaxOpenCarts int
	// DefaultSalesLimit and MaxSalesLimit bound GET /api/sales.
	DefaultSalesLimit int
	MaxSalesLimit     int
}

// Handler implements the HTTP endpoints, delegating to the cart registry,
// the catalog and the sale service.
type Handler struct {
	products  product.Repository
	carts     *cartstore.Store
	checkout  Checkouter
	sales     RecentSales
	promos    promo.Validator
	directory Directory

	maxOpenCarts  int
	defaultSales  int
	maxSalesLimit int
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts *cartstore.Store,
	checkout Checkouter,
	sales RecentSales,
	promos promo.Validator,
	directory Directory,
) *Handler {
	if cfg.DefaultSalesLimit <= 0 {
		cfg.DefaultSalesLimit = 20
	}
	if cfg.MaxSalesLimit < cfg.DefaultSalesLimit {
		cfg.MaxSalesLimit = 100
	}
	return &Handler{
		products:      products,
		carts:         carts,
		checkout:      checkout,
		sales:         sales,
		promos:        promos,
		directory:     directory,
		maxOpenCarts:  cfg.MaxOpenCarts,
		defaultSales:  cfg.DefaultSalesLimit,
		maxSalesLimit: cfg.MaxSalesLimit,
	}
}

// Register mounts every API route on mux behind the authenticator.
func (h *Handler) Register(mux *http.ServeMux, a *Authenticator) {
	authed := a.Require("")
	sell := a.Require(auth.ScopeSell)
	reports := a.Require(auth.ScopeReports)

	routes := []struct {
		pattern string
		guard   func(http.Handler) http.Handler
		fn      http.HandlerFunc
	}{
		{"GET /api/products", authed, h.ListProducts},
		{"POST /api/carts", sell, h.CreateCart},
		{"GET /api/carts/{id}", sell, h.GetCart},
		{"DELETE /api/carts/{id}", sell, h.ClearCart},
		{"POST /api/carts/{id}/items", sell, h.AddItem},
		{"PUT /api/carts/{id}/items/quantity", sell, h.UpdateQuantity},
		{"DELETE /api/carts/{id}/items", sell, h.RemoveItem},
		{"PUT /api/carts/{id}/discounts", sell, h.UpdateDiscount},
		{"POST /api/carts/{id}/items/free-gift", sell, h.ToggleFreeGift},
		{"PUT /api/carts/{id}/adjustments", sell, h.UpdateAdjustments},
		{"POST /api/carts/{id}/promo", sell, h.ApplyPromo},
		{"POST /api/carts/{id}/checkout", sell, h.Checkout},
		{"GET /api/sales", reports, h.ListSales},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, rt.guard(rt.fn))
	}
}
