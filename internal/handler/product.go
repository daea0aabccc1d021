package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/erp-pos/internal/domain/product"
)

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(w, r, err, "list products")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range products {
		encodeProduct(&e, &products[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	optStr(e, "sku", p.SKU)
	money(e, "price", p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("hasVariations")
	e.Bool(p.HasVariations)
	if p.HasVariations {
		e.FieldStart("variations")
		e.ArrStart()
		for _, v := range p.Variations {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(v.ID)
			e.FieldStart("name")
			e.Str(v.Name)
			optStr(e, "sku", v.SKU)
			money(e, "price", v.Price)
			e.FieldStart("stock")
			e.Int(v.Stock)
			if len(v.Attributes) > 0 {
				e.FieldStart("attributes")
				e.ObjStart()
				keys := make([]string, 0, len(v.Attributes))
				for k := range v.Attributes {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					e.FieldStart(k)
					e.Str(v.Attributes[k])
				}
				e.ObjEnd()
			}
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

// internalError logs err and hides it from the client.
func internalError(w http.ResponseWriter, r *http.Request, err error, op string) {
	zctx.From(r.Context()).Error("Request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
