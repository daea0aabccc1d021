package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for sale. A product with
// HasVariations set is priced and stocked through its Variations.
type Product struct {
	ID            string
	Name          string
	SKU           string
	Price         decimal.Decimal
	BuyingPrice   decimal.Decimal
	Stock         int
	HasVariations bool
	Variations    []Variation

	// WarehouseStock is the stock figure for the currently selected warehouse.
	// It is injected by the catalog provider and is nil when no warehouse
	// scope applies.
	WarehouseStock *int
}

// Variation is a sellable variant of a product (size, colour, ...).
type Variation struct {
	ID          string
	ProductID   string
	Name        string
	SKU         string
	Price       decimal.Decimal
	BuyingPrice decimal.Decimal
	Stock       int
	Attributes  map[string]string
}

// Packaging is a unit a product is sold in (box, pack, crate).
type Packaging struct {
	ID         string
	Name       string
	Variations []PackagingVariation
}

// PackagingVariation is a variant of a packaging unit.
type PackagingVariation struct {
	ID          string
	PackagingID string
	Name        string
}

// Variation returns the variation with the given id.
func (p *Product) Variation(id string) (*Variation, bool) {
	if id == "" {
		return nil, false
	}
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

// Variation returns the packaging variation with the given id.
func (p *Packaging) Variation(id string) (*PackagingVariation, bool) {
	if id == "" {
		return nil, false
	}
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// Catalog loads the given products and all packagings. When warehouseID is
	// non-empty every product carries that warehouse's stock override.
	Catalog(ctx context.Context, warehouseID string, productIDs []string) (*Catalog, error)
}
