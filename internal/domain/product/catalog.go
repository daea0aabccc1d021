package product

// Catalog is an indexed, read-only view over products and packagings used for
// cart resolution.
type Catalog struct {
	products   map[string]*Product
	packagings map[string]*Packaging
}

// NewCatalog indexes the given products and packagings by id.
func NewCatalog(products []Product, packagings []Packaging) *Catalog {
	c := &Catalog{
		products:   make(map[string]*Product, len(products)),
		packagings: make(map[string]*Packaging, len(packagings)),
	}
	for i := range products {
		c.products[products[i].ID] = &products[i]
	}
	for i := range packagings {
		c.packagings[packagings[i].ID] = &packagings[i]
	}
	return c
}

// Product returns the product with the given id.
func (c *Catalog) Product(id string) (*Product, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.products[id]
	return p, ok
}

// Packaging returns the packaging with the given id.
func (c *Catalog) Packaging(id string) (*Packaging, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.packagings[id]
	return p, ok
}
