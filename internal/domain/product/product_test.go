package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestAvailableStock(t *testing.T) {
	variant := &Product{
		ID:            "p1",
		HasVariations: true,
		Stock:         100,
		Variations: []Variation{
			{ID: "v1", Stock: 4},
			{ID: "v2", Stock: 0},
		},
	}

	tests := []struct {
		name        string
		product     *Product
		variationID string
		want        int
	}{
		{name: "nil product", product: nil, want: 0},
		{name: "simple product", product: &Product{ID: "p2", Stock: 7}, want: 7},
		{name: "simple product ignores variation id", product: &Product{ID: "p2", Stock: 7}, variationID: "vx", want: 7},
		{name: "variant matches variation", product: variant, variationID: "v1", want: 4},
		{name: "variant with zero stock variation", product: variant, variationID: "v2", want: 0},
		{name: "variant with unknown variation", product: variant, variationID: "nope", want: 0},
		{name: "variant without variation id", product: variant, want: 0},
		{
			name: "warehouse override wins over variation",
			product: &Product{
				ID:             "p3",
				HasVariations:  true,
				Variations:     []Variation{{ID: "v1", Stock: 50}},
				WarehouseStock: intPtr(2),
			},
			variationID: "v1",
			want:        2,
		},
		{
			name:    "warehouse override of zero",
			product: &Product{ID: "p4", Stock: 9, WarehouseStock: intPtr(0)},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvailableStock(tt.product, tt.variationID))
		})
	}
}

func TestAuthoritativeStock_IgnoresWarehouseOverride(t *testing.T) {
	p := &Product{
		ID:             "p1",
		Stock:          10,
		Variations:     []Variation{{ID: "v1", Stock: 3}},
		HasVariations:  true,
		WarehouseStock: intPtr(1),
	}

	assert.Equal(t, 3, AuthoritativeStock(p, "v1"))
	assert.Equal(t, 10, AuthoritativeStock(p, ""))
	assert.Equal(t, 10, AuthoritativeStock(p, "missing"))
	assert.Equal(t, 0, AuthoritativeStock(nil, "v1"))
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog(
		[]Product{{ID: "p1", Name: "Rice"}},
		[]Packaging{{ID: "box", Name: "Box", Variations: []PackagingVariation{{ID: "box-10", Name: "Box of 10"}}}},
	)

	p, ok := c.Product("p1")
	require.True(t, ok)
	assert.Equal(t, "Rice", p.Name)

	_, ok = c.Product("p2")
	assert.False(t, ok)

	pk, ok := c.Packaging("box")
	require.True(t, ok)
	pv, ok := pk.Variation("box-10")
	require.True(t, ok)
	assert.Equal(t, "Box of 10", pv.Name)

	_, ok = pk.Variation("")
	assert.False(t, ok)

	var nilCatalog *Catalog
	_, ok = nilCatalog.Product("p1")
	assert.False(t, ok)
}

func TestValidateCombinations(t *testing.T) {
	tests := []struct {
		name      string
		drafts    []VariationDraft
		wantErr   bool
		wantSKU   string
		wantCombo string
	}{
		{
			name: "distinct combinations",
			drafts: []VariationDraft{
				{ProductID: "p1", SKU: "TS-R-M", Attributes: map[string]string{"color": "red", "size": "M"}},
				{ProductID: "p1", SKU: "TS-R-L", Attributes: map[string]string{"color": "red", "size": "L"}},
			},
		},
		{
			name: "same combination in different order and case",
			drafts: []VariationDraft{
				{ProductID: "p1", Attributes: map[string]string{"color": "Red", "size": "M"}},
				{ProductID: "p1", Attributes: map[string]string{"Size": "m", "color": "red "}},
			},
			wantErr:   true,
			wantCombo: "color=red;size=m",
		},
		{
			name: "same combination on different products is allowed",
			drafts: []VariationDraft{
				{ProductID: "p1", Attributes: map[string]string{"size": "M"}},
				{ProductID: "p2", Attributes: map[string]string{"size": "M"}},
			},
		},
		{
			name: "duplicate sku across products",
			drafts: []VariationDraft{
				{ProductID: "p1", SKU: "abc-1", Attributes: map[string]string{"size": "S"}},
				{ProductID: "p2", SKU: " ABC-1", Attributes: map[string]string{"size": "L"}},
			},
			wantErr: true,
			wantSKU: "ABC-1",
		},
		{
			name: "empty skus and attributes are not compared",
			drafts: []VariationDraft{
				{ProductID: "p1"},
				{ProductID: "p1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCombinations(tt.drafts)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			var dupErr *DuplicateCombinationError
			require.ErrorAs(t, err, &dupErr)
			assert.Equal(t, tt.wantSKU, dupErr.SKU)
			assert.Equal(t, tt.wantCombo, dupErr.Combination)
			assert.Equal(t, 0, dupErr.First)
			assert.Equal(t, 1, dupErr.Second)
		})
	}
}
