package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/product"
)

var hundred = decimal.NewFromInt(100)

// ResolutionStatus tells whether a line item could be joined with the catalog.
type ResolutionStatus int

const (
	// Resolved means product and packaging were found and the line is priced.
	Resolved ResolutionStatus = iota
	// MissingProduct means the product is absent from the catalog.
	MissingProduct
	// MissingPackaging means the packaging is absent from the catalog.
	MissingPackaging
)

func (s ResolutionStatus) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case MissingProduct:
		return "missing_product"
	case MissingPackaging:
		return "missing_packaging"
	default:
		return "unknown"
	}
}

// ResolvedItem is a line item joined with catalog data and its computed
// monetary fields. It is a view and is never stored.
type ResolvedItem struct {
	LineItem

	Product            *product.Product
	Variation          *product.Variation
	Packaging          *product.Packaging
	PackagingVariation *product.PackagingVariation

	UnitPrice      decimal.Decimal
	OriginalTotal  decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// Resolution is the outcome of resolving one line item. Line is only set
// when Status is Resolved.
type Resolution struct {
	Item   LineItem
	Status ResolutionStatus
	Line   *ResolvedItem
}

// Totals are the cart-level derived amounts.
type Totals struct {
	Subtotal            decimal.Decimal
	TotalDiscountAmount decimal.Decimal
	AfterDiscount       decimal.Decimal
	TaxAmount           decimal.Decimal
	GrandTotal          decimal.Decimal
}

// Resolve joins every item with the catalog and prices it. Items whose
// product or packaging is missing are reported, not priced.
func Resolve(items []LineItem, c *product.Catalog) []Resolution {
	out := make([]Resolution, 0, len(items))
	for _, it := range items {
		p, ok := c.Product(it.ProductID)
		if !ok {
			out = append(out, Resolution{Item: it, Status: MissingProduct})
			continue
		}
		pk, ok := c.Packaging(it.PackagingID)
		if !ok {
			out = append(out, Resolution{Item: it, Status: MissingPackaging})
			continue
		}

		line := priceLine(it, p, pk)
		out = append(out, Resolution{Item: it, Status: Resolved, Line: &line})
	}
	return out
}

// ResolvedItems returns only the priced lines of rs, preserving order.
func ResolvedItems(rs []Resolution) []ResolvedItem {
	out := make([]ResolvedItem, 0, len(rs))
	for _, r := range rs {
		if r.Status == Resolved {
			out = append(out, *r.Line)
		}
	}
	return out
}

// ResolveItems is Resolve followed by ResolvedItems.
func ResolveItems(items []LineItem, c *product.Catalog) []ResolvedItem {
	return ResolvedItems(Resolve(items, c))
}

func priceLine(it LineItem, p *product.Product, pk *product.Packaging) ResolvedItem {
	line := ResolvedItem{
		LineItem:  it,
		Product:   p,
		Packaging: pk,
	}
	if v, ok := p.Variation(it.VariationID); ok {
		line.Variation = v
	}
	if pv, ok := pk.Variation(it.PackagingVariationID); ok {
		line.PackagingVariation = pv
	}

	line.UnitPrice = UnitPrice(it, p, line.Variation)
	line.OriginalTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	line.DiscountAmount = applyDiscount(line.OriginalTotal, it.Discount, it.DiscountType)
	line.Total = line.OriginalTotal.Sub(line.DiscountAmount)
	return line
}

// UnitPrice returns the price of one unit: zero for free gifts, else the
// variation's price when present, else the product's price.
func UnitPrice(it LineItem, p *product.Product, v *product.Variation) decimal.Decimal {
	switch {
	case it.IsFreeGift:
		return decimal.Zero
	case v != nil:
		return v.Price
	default:
		return p.Price
	}
}

// ComputeTotals sums line totals and applies the cart-wide discount and tax.
// Negative amounts are carried through unchanged.
func ComputeTotals(items []ResolvedItem, adj Adjustments) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
	}

	discount := applyDiscount(subtotal, adj.TotalDiscount, adj.TotalDiscountType)
	after := subtotal.Sub(discount)
	tax := after.Mul(adj.TaxRate).Div(hundred)

	return Totals{
		Subtotal:            subtotal,
		TotalDiscountAmount: discount,
		AfterDiscount:       after,
		TaxAmount:           tax,
		GrandTotal:          after.Add(tax),
	}
}

func applyDiscount(amount, value decimal.Decimal, t DiscountType) decimal.Decimal {
	if t.isPercentage() {
		return amount.Mul(value).Div(hundred)
	}
	return value
}
