package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/cartstore"
	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/product"
	"github.com/xenking/erp-pos/internal/domain/promo"
)

var errInsufficientStock = errors.New("insufficient stock")

// CreateCart opens an empty cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	if h.maxOpenCarts > 0 && h.carts.Len() >= h.maxOpenCarts {
		writeError(w, http.StatusServiceUnavailable, "too many open carts")
		return
	}
	id := h.carts.Create()
	h.renderCart(w, r, http.StatusCreated, id, "", cart.New().Snapshot())
}

// GetCart returns the cart with resolved items and totals. The optional
// warehouseId query parameter scopes the reported stock.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.carts.Snapshot(id)
	if err != nil {
		cartError(w, r, err)
		return
	}
	h.renderCart(w, r, http.StatusOK, id, r.URL.Query().Get("warehouseId"), snap)
}

// ClearCart empties the cart and resets its adjustments.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// AddItem adds one unit of the key, refusing with 409 when the product's
// available stock would be exceeded.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, ok := h.lookup(w, r, req)
	if !ok {
		return
	}
	h.mutate(w, r, req.WarehouseID, func(c *cart.Cart) error {
		if !cart.CanAdd(c, p, req.Key) {
			return errInsufficientStock
		}
		c.Add(req.Key)
		return nil
	})
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var (
		req      keyRequest
		quantity int
		hasQty   bool
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if ok, err := req.decodeKeyField(d, key); ok {
			return err
		}
		if key == "quantity" {
			hasQty = true
			v, err := d.Int()
			quantity = v
			return err
		}
		return d.Skip()
	})
	if err == nil {
		err = req.validate()
	}
	if err == nil && !hasQty {
		err = errors.New("quantity is required")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var p *product.Product
	if quantity > 0 {
		if p, _ = h.lookup(w, r, req); p == nil {
			return
		}
	}
	h.mutate(w, r, req.WarehouseID, func(c *cart.Cart) error {
		if p != nil && quantity > c.Quantity(req.Key) && !cart.QuantityAllowed(p, req.VariationID, quantity) {
			return errInsufficientStock
		}
		c.UpdateQuantity(req.Key, quantity)
		return nil
	})
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, req.WarehouseID, func(c *cart.Cart) error {
		c.Remove(req.Key)
		return nil
	})
}

// UpdateDiscount sets the discount value and/or type of every line of the
// (productId, variationId) pair.
func (h *Handler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		productID, variationID string
		discount               *decimal.Decimal
		discountType           *cart.DiscountType
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			productID = v
			return err
		case "variationId":
			v, err := d.Str()
			variationID = v
			return err
		case "discount":
			v, err := decodeDecimal(d)
			discount = &v
			return err
		case "discountType":
			v, err := d.Str()
			t := cart.DiscountType(v)
			discountType = &t
			return err
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
	case productID == "":
		err = errors.New("productId is required")
	case discount == nil && discountType == nil:
		err = errors.New("discount or discountType is required")
	case discountType != nil && !discountType.Valid():
		err = errors.Errorf("unknown discountType %q", *discountType)
	case discount != nil && discount.IsNegative():
		err = errors.New("discount must not be negative")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mutate(w, r, "", func(c *cart.Cart) error {
		if discountType != nil {
			c.UpdateDiscountType(productID, variationID, *discountType)
		}
		if discount != nil {
			c.UpdateDiscount(productID, variationID, *discount)
		}
		return nil
	})
}

// ToggleFreeGift flips the free-gift flag of a line.
func (h *Handler) ToggleFreeGift(w http.ResponseWriter, r *http.Request) {
	req, err := decodeKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, req.WarehouseID, func(c *cart.Cart) error {
		c.ToggleFreeGift(req.Key)
		return nil
	})
}

// UpdateAdjustments sets any of the cart-wide discount, its type and the
// tax rate. A manual discount replaces any applied promo code.
func (h *Handler) UpdateAdjustments(w http.ResponseWriter, r *http.Request) {
	var (
		discount, taxRate *decimal.Decimal
		discountType      *cart.DiscountType
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "totalDiscount":
			v, err := decodeDecimal(d)
			discount = &v
			return err
		case "totalDiscountType":
			v, err := d.Str()
			t := cart.DiscountType(v)
			discountType = &t
			return err
		case "taxRate":
			v, err := decodeDecimal(d)
			taxRate = &v
			return err
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
	case discountType != nil && !discountType.Valid():
		err = errors.Errorf("unknown totalDiscountType %q", *discountType)
	case discount != nil && discount.IsNegative():
		err = errors.New("totalDiscount must not be negative")
	case taxRate != nil && taxRate.IsNegative():
		err = errors.New("taxRate must not be negative")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mutate(w, r, "", func(c *cart.Cart) error {
		if discountType != nil {
			c.SetTotalDiscountType(*discountType)
		}
		if discount != nil {
			c.SetTotalDiscount(*discount)
		}
		if discountType != nil || discount != nil {
			c.SetPromoCode("")
		}
		if taxRate != nil {
			c.SetTaxRate(*taxRate)
		}
		return nil
	})
}

// ApplyPromo checks a promo code against the cart's unit count and sets the
// resulting cart-wide discount. The code is redeemed only when the cart is
// sold.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key == "code" {
			v, err := d.Str()
			code = v
			return err
		}
		return d.Skip()
	})
	if err == nil && code == "" {
		err = errors.New("code is required")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	snap, err := h.carts.Snapshot(id)
	if err != nil {
		cartError(w, r, err)
		return
	}
	units := 0
	for _, it := range snap.Items {
		units += it.Quantity
	}

	discount, err := h.promos.Validate(r.Context(), code, units)
	switch {
	case err == nil:
	case errors.Is(err, promo.ErrInvalidCode),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrUsageLimitReached):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		internalError(w, r, err, "validate promo")
		return
	}

	h.mutate(w, r, "", func(c *cart.Cart) error {
		discount.ApplyTo(c)
		return nil
	})
}

// mutate applies fn to the cart named by the path and renders the result.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, warehouseID string, fn func(c *cart.Cart) error) {
	id := r.PathValue("id")
	var snap cart.Snapshot
	err := h.carts.Update(id, func(c *cart.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		cartError(w, r, err)
		return
	}
	if warehouseID == "" {
		warehouseID = r.URL.Query().Get("warehouseId")
	}
	h.renderCart(w, r, http.StatusOK, id, warehouseID, snap)
}

// lookup loads the requested product scoped to the request's warehouse.
// It writes 404 when the product, variation or packaging does not exist and
// 400 when a product with variations is requested without one.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, req keyRequest) (*product.Product, bool) {
	cat, err := h.products.Catalog(r.Context(), req.WarehouseID, []string{req.ProductID})
	if err != nil {
		internalError(w, r, err, "load catalog")
		return nil, false
	}
	p, ok := cat.Product(req.ProductID)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	if req.VariationID != "" {
		if _, ok := p.Variation(req.VariationID); !ok {
			writeError(w, http.StatusNotFound, "variation not found")
			return nil, false
		}
	} else if p.HasVariations {
		writeError(w, http.StatusBadRequest, "variationId is required for products with variations")
		return nil, false
	}
	if _, ok := cat.Packaging(req.PackagingID); !ok {
		writeError(w, http.StatusNotFound, "packaging not found")
		return nil, false
	}
	return p, true
}

func cartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cartstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, errInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	default:
		internalError(w, r, err, "update cart")
	}
}

func (h *Handler) catalogFor(ctx context.Context, warehouseID string, items []cart.LineItem) (*product.Catalog, error) {
	if len(items) == 0 {
		return product.NewCatalog(nil, nil), nil
	}
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return h.products.Catalog(ctx, warehouseID, ids)
}

// renderCart prices the snapshot against the current catalog and writes it.
func (h *Handler) renderCart(w http.ResponseWriter, r *http.Request, status int, id, warehouseID string, snap cart.Snapshot) {
	cat, err := h.catalogFor(r.Context(), warehouseID, snap.Items)
	if err != nil {
		internalError(w, r, err, "load catalog")
		return
	}
	resolutions := cart.Resolve(snap.Items, cat)
	totals := cart.ComputeTotals(cart.ResolvedItems(resolutions), snap.Adjustments)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id)

	e.FieldStart("items")
	e.ArrStart()
	for _, res := range resolutions {
		if res.Status == cart.Resolved {
			encodeLine(&e, res.Line)
		}
	}
	e.ArrEnd()

	e.FieldStart("unresolved")
	e.ArrStart()
	for _, res := range resolutions {
		if res.Status == cart.Resolved {
			continue
		}
		e.ObjStart()
		encodeKey(&e, res.Item.Key)
		e.FieldStart("quantity")
		e.Int(res.Item.Quantity)
		e.FieldStart("reason")
		e.Str(res.Status.String())
		e.ObjEnd()
	}
	e.ArrEnd()

	adj := snap.Adjustments
	e.FieldStart("adjustments")
	e.ObjStart()
	e.FieldStart("totalDiscount")
	e.Str(adj.TotalDiscount.String())
	e.FieldStart("totalDiscountType")
	e.Str(string(adj.TotalDiscountType))
	e.FieldStart("taxRate")
	e.Str(adj.TaxRate.String())
	optStr(&e, "promoCode", adj.PromoCode)
	e.ObjEnd()

	encodeTotals(&e, totals)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func encodeKey(e *jx.Encoder, k cart.Key) {
	e.FieldStart("productId")
	e.Str(k.ProductID)
	optStr(e, "variationId", k.VariationID)
	e.FieldStart("packagingId")
	e.Str(k.PackagingID)
	optStr(e, "packagingVariationId", k.PackagingVariationID)
}

func encodeLine(e *jx.Encoder, it *cart.ResolvedItem) {
	e.ObjStart()
	encodeKey(e, it.Key)
	e.FieldStart("productName")
	e.Str(it.Product.Name)
	if it.Variation != nil {
		e.FieldStart("variationName")
		e.Str(it.Variation.Name)
	}
	e.FieldStart("packagingName")
	e.Str(it.Packaging.Name)
	if it.PackagingVariation != nil {
		e.FieldStart("packagingVariationName")
		e.Str(it.PackagingVariation.Name)
	}
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("availableStock")
	e.Int(product.AvailableStock(it.Product, it.VariationID))
	money(e, "unitPrice", it.UnitPrice)
	money(e, "originalTotal", it.OriginalTotal)
	e.FieldStart("discount")
	e.Str(it.Discount.String())
	e.FieldStart("discountType")
	e.Str(string(it.DiscountType))
	money(e, "discountAmount", it.DiscountAmount)
	money(e, "total", it.Total)
	e.FieldStart("isFreeGift")
	e.Bool(it.IsFreeGift)
	e.ObjEnd()
}

func encodeTotals(e *jx.Encoder, t cart.Totals) {
	e.FieldStart("totals")
	e.ObjStart()
	money(e, "subtotal", t.Subtotal)
	money(e, "totalDiscountAmount", t.TotalDiscountAmount)
	money(e, "afterDiscount", t.AfterDiscount)
	money(e, "taxAmount", t.TaxAmount)
	money(e, "grandTotal", t.GrandTotal)
	e.ObjEnd()
}
