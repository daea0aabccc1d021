package product

import (
	"fmt"
	"sort"
	"strings"
)

// VariationDraft is a variation being authored, before it is persisted.
type VariationDraft struct {
	ProductID  string
	SKU        string
	Attributes map[string]string
}

// DuplicateCombinationError reports two drafts that resolve to the same
// attribute combination or SKU.
type DuplicateCombinationError struct {
	ProductID   string
	Combination string
	SKU         string
	First       int
	Second      int
}

func (e *DuplicateCombinationError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("duplicate SKU %q for product %s (variations %d and %d)",
			e.SKU, e.ProductID, e.First+1, e.Second+1)
	}
	return fmt.Sprintf("duplicate attribute combination %q for product %s (variations %d and %d)",
		e.Combination, e.ProductID, e.First+1, e.Second+1)
}

// CombinationKey renders attributes as a canonical, order-insensitive and
// case-insensitive string such as "color=red;size=m".
func CombinationKey(attrs map[string]string) string {
	parts := make([]string, 0, len(attrs))
	for k, v := range attrs {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		if k == "" || v == "" {
			continue
		}
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// NormalizeSKU upper-cases and trims a SKU for comparison.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ValidateCombinations checks that no two drafts of the same product share an
// attribute combination and that no two drafts share a SKU. Empty SKUs and
// empty combinations are not compared.
func ValidateCombinations(drafts []VariationDraft) error {
	type seenKey struct{ product, combo string }
	combos := make(map[seenKey]int, len(drafts))
	skus := make(map[string]int, len(drafts))

	for i, d := range drafts {
		if combo := CombinationKey(d.Attributes); combo != "" {
			k := seenKey{product: d.ProductID, combo: combo}
			if j, ok := combos[k]; ok {
				return &DuplicateCombinationError{ProductID: d.ProductID, Combination: combo, First: j, Second: i}
			}
			combos[k] = i
		}
		if sku := NormalizeSKU(d.SKU); sku != "" {
			if j, ok := skus[sku]; ok {
				return &DuplicateCombinationError{ProductID: d.ProductID, SKU: sku, First: j, Second: i}
			}
			skus[sku] = i
		}
	}
	return nil
}
