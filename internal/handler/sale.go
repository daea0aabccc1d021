package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/erp-pos/internal/domain/sale"
)

// Checkout submits the cart as a sale. Warehouse and customer ids are
// resolved to their display names before submission.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var (
		warehouseID, customerID string
		details                 sale.Details
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "warehouseId":
			dst = &warehouseID
		case "customerId":
			dst = &customerID
		case "paymentMethod":
			dst = &details.PaymentMethod
		case "notes":
			dst = &details.Notes
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	handle, err := h.carts.Handle(r.PathValue("id"))
	if err != nil {
		cartError(w, r, err)
		return
	}

	// Empty ids are left for the sale service to reject in field order.
	if details.Warehouse, err = h.party(ctx, h.directory.Warehouse, warehouseID); err != nil {
		partyError(w, r, "warehouse", err)
		return
	}
	if details.Customer, err = h.party(ctx, h.directory.Customer, customerID); err != nil {
		partyError(w, r, "customer", err)
		return
	}
	if info, ok := KeyFromContext(ctx); ok {
		details.CreatedBy = info.Name
	}

	res := h.checkout.Checkout(ctx, handle, details)
	if !res.OK() {
		writeError(w, checkoutStatus(res.Err), res.Message)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("saleId")
	e.Str(res.SaleID)
	e.FieldStart("message")
	e.Str(res.Message)
	money(&e, "revenue", res.Revenue)
	money(&e, "profit", res.Profit)
	e.FieldStart("items")
	e.Int(len(res.Items))
	encodeTotals(&e, res.Totals)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) party(
	ctx context.Context,
	find func(context.Context, string) (sale.Party, error),
	id string,
) (sale.Party, error) {
	if id == "" {
		return sale.Party{}, nil
	}
	return find(ctx, id)
}

func partyError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, sale.ErrUnknownParty) {
		writeError(w, http.StatusUnprocessableEntity, "Unknown "+what)
		return
	}
	internalError(w, r, err, "resolve "+what)
}

func checkoutStatus(err error) int {
	var (
		validationErr  *sale.ValidationError
		stockErr       *sale.StockError
		persistenceErr *sale.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &stockErr):
		return http.StatusConflict
	case errors.As(err, &persistenceErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ListSales returns the most recent sales. limit defaults to the configured
// page size and is capped.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultSales
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, h.maxSalesLimit)
	}

	records, err := h.sales.ListRecent(r.Context(), limit)
	if err != nil {
		internalError(w, r, err, "list sales")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range records {
		encodeRecord(&e, &records[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeRecord(e *jx.Encoder, rec *sale.Record) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(rec.ID)
	e.FieldStart("customerId")
	e.Str(rec.CustomerID)
	e.FieldStart("customerName")
	e.Str(rec.CustomerName)
	e.FieldStart("warehouseId")
	e.Str(rec.WarehouseID)
	e.FieldStart("warehouseName")
	e.Str(rec.WarehouseName)
	e.FieldStart("paymentMethod")
	e.Str(rec.PaymentMethod)
	money(e, "subtotal", rec.Subtotal)
	money(e, "discountAmount", rec.DiscountAmount)
	money(e, "taxAmount", rec.TaxAmount)
	money(e, "grandTotal", rec.GrandTotal)
	e.FieldStart("status")
	e.Str(rec.Status)
	optStr(e, "notes", rec.Notes)
	optStr(e, "createdBy", rec.CreatedBy)
	optStr(e, "promoCode", rec.PromoCode)
	e.FieldStart("createdAt")
	e.Str(rec.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

// LogNotifier delivers checkout notifications to the request logger. The
// HTTP response carries the same message to the client.
type LogNotifier struct{}

// Notify implements sale.Notifier.
func (LogNotifier) Notify(ctx context.Context, n sale.Notification) {
	lg := zctx.From(ctx)
	if n.Level == sale.LevelError {
		lg.Warn(n.Message, zap.String("level", string(n.Level)))
		return
	}
	lg.Info(n.Message, zap.String("level", string(n.Level)))
}
