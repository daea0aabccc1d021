// Package cart implements the point-of-sale cart: line item identity, the
// mutable cart store and the pricing engine that derives monetary totals.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Adjustments are the cart-wide discount and tax settings applied after all
// line totals are summed.
type Adjustments struct {
	TotalDiscount     decimal.Decimal
	TotalDiscountType DiscountType
	TaxRate           decimal.Decimal
	// PromoCode is the code the cart-wide discount came from, if any. It is
	// redeemed when the cart is sold.
	PromoCode string
}

func defaultAdjustments() Adjustments {
	return Adjustments{
		TotalDiscount:     decimal.Zero,
		TotalDiscountType: DiscountPercentage,
		TaxRate:           decimal.Zero,
	}
}

// Snapshot is an immutable copy of cart state.
type Snapshot struct {
	Items       []LineItem
	Adjustments Adjustments
}

// Cart holds the ordered line items and cart-wide adjustments.
//
// Mutations never fail: unknown keys and out-of-range values are no-ops.
// A Cart is not safe for concurrent use.
type Cart struct {
	items []LineItem
	adj   Adjustments
}

// New returns an empty cart with default adjustments.
func New() *Cart {
	return &Cart{adj: defaultAdjustments()}
}

// Add puts one unit of k into the cart. An existing entry has its quantity
// incremented; otherwise a new entry with quantity 1 and no discount is
// appended.
func (c *Cart) Add(k Key) {
	if i := c.index(k); i >= 0 {
		c.UpdateQuantity(k, c.items[i].Quantity+1)
		return
	}
	c.items = append(c.items, newLineItem(k))
}

// UpdateQuantity sets the quantity of the entry matching k. A quantity of
// zero or less removes the entry.
func (c *Cart) UpdateQuantity(k Key, quantity int) {
	if quantity <= 0 {
		c.Remove(k)
		return
	}
	if i := c.index(k); i >= 0 {
		c.items[i].Quantity = quantity
	}
}

// Remove deletes the entry matching k.
func (c *Cart) Remove(k Key) {
	c.items = slices.DeleteFunc(c.items, func(it LineItem) bool {
		return it.Key == k
	})
}

// UpdateDiscount sets the line discount on every entry of the given product
// and variation, across all packagings. Negative discounts are ignored.
func (c *Cart) UpdateDiscount(productID, variationID string, discount decimal.Decimal) {
	if discount.IsNegative() {
		return
	}
	for i := range c.items {
		if c.items[i].matches(productID, variationID) {
			c.items[i].Discount = discount
		}
	}
}

// UpdateDiscountType sets the line discount type on every entry of the given
// product and variation, across all packagings.
func (c *Cart) UpdateDiscountType(productID, variationID string, t DiscountType) {
	if !t.Valid() {
		return
	}
	for i := range c.items {
		if c.items[i].matches(productID, variationID) {
			c.items[i].DiscountType = t
		}
	}
}

// ToggleFreeGift flips the free-gift flag of the entry matching k and resets
// its line discount.
func (c *Cart) ToggleFreeGift(k Key) {
	if i := c.index(k); i >= 0 {
		c.items[i].IsFreeGift = !c.items[i].IsFreeGift
		c.items[i].Discount = decimal.Zero
	}
}

// SetTotalDiscount sets the cart-wide discount value. Negative values are
// ignored.
func (c *Cart) SetTotalDiscount(v decimal.Decimal) {
	if v.IsNegative() {
		return
	}
	c.adj.TotalDiscount = v
}

// SetTotalDiscountType sets how the cart-wide discount is interpreted.
func (c *Cart) SetTotalDiscountType(t DiscountType) {
	if t.Valid() {
		c.adj.TotalDiscountType = t
	}
}

// SetPromoCode records the promo code behind the cart-wide discount. An
// empty code detaches the discount from any promotion.
func (c *Cart) SetPromoCode(code string) {
	c.adj.PromoCode = code
}

// SetTaxRate sets the cart-wide tax percentage. Negative rates are ignored.
func (c *Cart) SetTaxRate(v decimal.Decimal) {
	if v.IsNegative() {
		return
	}
	c.adj.TaxRate = v
}

// Clear empties the cart and resets adjustments.
func (c *Cart) Clear() {
	c.items = nil
	c.adj = defaultAdjustments()
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	return slices.Clone(c.items)
}

// Quantity returns the quantity held for k, or 0.
func (c *Cart) Quantity(k Key) int {
	if i := c.index(k); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// Len returns the number of line items.
func (c *Cart) Len() int {
	return len(c.items)
}

// Adjustments returns the current cart-wide adjustments.
func (c *Cart) Adjustments() Adjustments {
	return c.adj
}

// Snapshot returns a copy of the cart state.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{Items: c.Items(), Adjustments: c.adj}
}

func (c *Cart) index(k Key) int {
	return slices.IndexFunc(c.items, func(it LineItem) bool {
		return it.Key == k
	})
}

func (it LineItem) matches(productID, variationID string) bool {
	return it.ProductID == productID && it.VariationID == variationID
}
