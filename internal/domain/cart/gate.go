package cart

import "github.com/xenking/erp-pos/internal/domain/product"

// CanAdd reports whether one more unit of k fits within the product's
// available stock. It is advisory; Cart mutations do not consult it.
func CanAdd(c *Cart, p *product.Product, k Key) bool {
	return QuantityAllowed(p, k.VariationID, c.Quantity(k)+1)
}

// QuantityAllowed reports whether quantity units are within available stock.
func QuantityAllowed(p *product.Product, variationID string, quantity int) bool {
	return quantity <= product.AvailableStock(p, variationID)
}
