package product

// AvailableStock returns the stock that can be offered for the product or one
// of its variations.
//
// A warehouse override takes precedence and ignores variation stock entirely.
// Otherwise variant products report the matching variation's stock (0 when the
// variation is unknown) and simple products report their own stock.
func AvailableStock(p *Product, variationID string) int {
	if p == nil {
		return 0
	}
	if p.WarehouseStock != nil {
		return *p.WarehouseStock
	}
	if p.HasVariations {
		if v, ok := p.Variation(variationID); ok {
			return v.Stock
		}
		return 0
	}
	return p.Stock
}

// AuthoritativeStock returns the stock used when a sale is submitted: the
// variation's stock when the variation exists, else the product's stock.
// The warehouse override is not consulted.
func AuthoritativeStock(p *Product, variationID string) int {
	if p == nil {
		return 0
	}
	if v, ok := p.Variation(variationID); ok {
		return v.Stock
	}
	return p.Stock
}
