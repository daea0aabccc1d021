package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates how a discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage interprets the value as a percentage of the amount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed interprets the value as a monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// isPercentage treats the zero value as percentage, the cart default.
func (t DiscountType) isPercentage() bool {
	return t != DiscountFixed
}

// Key is the composite identity of a line item. Optional components are
// empty when absent; an absent component never matches a present one.
type Key struct {
	ProductID            string
	VariationID          string
	PackagingID          string
	PackagingVariationID string
}

// String renders the key as "product/variation/packaging/packaging-variation".
func (k Key) String() string {
	return strings.Join([]string{k.ProductID, k.VariationID, k.PackagingID, k.PackagingVariationID}, "/")
}

// LineItem is one cart entry.
type LineItem struct {
	Key
	Quantity     int
	Discount     decimal.Decimal
	DiscountType DiscountType
	IsFreeGift   bool
}

func newLineItem(k Key) LineItem {
	return LineItem{
		Key:          k,
		Quantity:     1,
		Discount:     decimal.Zero,
		DiscountType: DiscountPercentage,
	}
}
