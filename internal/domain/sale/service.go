package sale

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/erp-pos/internal/domain/activity"
	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/product"
)

const instrumentationName = "github.com/xenking/erp-pos/internal/domain/sale"

// Service coordinates sale submission: validation, stock re-check,
// deduplication, persistence and post-commit bookkeeping.
//
// Checkout never takes a lock on the cart. The cart may change while the
// sale is being persisted; the persisted totals are those of the snapshot.
type Service struct {
	catalog  CatalogProvider
	sales    Repository
	cache    CacheInvalidator
	notifier Notifier
	activity activity.Logger

	honorWarehouseOverride bool

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	checkouts      metric.Int64Counter

	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithCacheInvalidator sets the collaborator told about new sales.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) { s.cache = c }
}

// WithNotifier sets the user notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithActivityLogger sets the audit logger.
func WithActivityLogger(l activity.Logger) Option {
	return func(s *Service) { s.activity = l }
}

// WithWarehouseOverride makes the submission stock check honor the
// warehouse-scoped stock figure, as the add-time check does. Off by default:
// submission checks nominal product and variation stock.
func WithWarehouseOverride(enabled bool) Option {
	return func(s *Service) { s.honorWarehouseOverride = enabled }
}

// WithTracerProvider sets the tracer provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// NewService creates a sale Service.
func NewService(catalog CatalogProvider, sales Repository, opts ...Option) (*Service, error) {
	s := &Service{
		catalog:        catalog,
		sales:          sales,
		cache:          nopInvalidator{},
		notifier:       nopNotifier{},
		activity:       activity.Nop{},
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	counter, err := s.meterProvider.Meter(instrumentationName).Int64Counter("pos.sale.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	s.checkouts = counter

	return s, nil
}

// Checkout submits the cart behind h as a sale. On success the cart is
// cleared. Every outcome, including storage failures, is reported through
// the returned Result.
func (s *Service) Checkout(ctx context.Context, h Handle, d Details) Result {
	ctx, span := s.tracer.Start(ctx, "sale.Checkout",
		trace.WithAttributes(
			attribute.String("pos.warehouse_id", d.Warehouse.ID),
			attribute.String("pos.customer_id", d.Customer.ID),
		),
	)
	defer span.End()
	lg := zctx.From(ctx)

	res := s.submit(ctx, h.Snapshot(), d)

	outcome := res.State.String()
	if res.OK() {
		h.Clear()
		span.SetAttributes(attribute.String("pos.sale_id", res.SaleID))
		lg.Info("Sale created",
			zap.String("sale_id", res.SaleID),
			zap.Stringer("revenue", res.Revenue),
			zap.Stringer("profit", res.Profit),
			zap.Int("lines", len(res.Items)),
		)
		s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Message: res.Message})
		s.logActivity(ctx, d, res)
	} else {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Message)
		outcome = failureKind(res.Err)
		lg.Warn("Sale checkout failed", zap.String("reason", outcome), zap.Error(res.Err))
		s.notifier.Notify(ctx, Notification{Level: LevelError, Message: res.Message})
	}
	s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return res
}

func (s *Service) submit(ctx context.Context, snap cart.Snapshot, d Details) Result {
	// Validating.
	if err := validateDetails(d, snap.Items); err != nil {
		return failed(err)
	}

	cat, err := s.catalog.Catalog(ctx, d.Warehouse.ID, productIDs(snap.Items))
	if err != nil {
		return failed(newPersistenceError("load catalog", err))
	}

	resolutions := cart.Resolve(snap.Items, cat)
	for _, r := range resolutions {
		if r.Status != cart.Resolved {
			zctx.From(ctx).Warn("Dropping unresolved cart line",
				zap.Stringer("key", r.Item.Key),
				zap.Stringer("status", r.Status),
			)
		}
	}
	items := cart.ResolvedItems(resolutions)
	if len(items) == 0 {
		return failed(&ValidationError{Field: FieldItems})
	}
	if err := s.checkStock(items); err != nil {
		return failed(err)
	}

	// Totals come from every resolved line, duplicates included, while the
	// persisted lines are deduplicated below. A cart holding the same key
	// twice therefore stores a grand total above the sum of its lines.
	totals := cart.ComputeTotals(items, snap.Adjustments)

	// Submitting.
	rec := s.buildRecord(d, snap.Adjustments, totals)
	lines := buildLines(rec.ID, dedupe(items))

	persisted, err := s.sales.CreateSale(ctx, rec, lines)
	if errors.Is(err, ErrPromoUnavailable) {
		return failed(&ValidationError{Field: FieldPromoCode})
	}
	if err != nil {
		return failed(newPersistenceError("create sale", err))
	}
	saleID := rec.ID
	if persisted != nil && persisted.ID != "" {
		saleID = persisted.ID
	}

	s.cache.Invalidate()

	return Result{
		State:   Succeeded,
		SaleID:  saleID,
		Revenue: totals.GrandTotal,
		Profit:  totals.GrandTotal.Sub(costOf(items)),
		Totals:  totals,
		Items:   items,
		Message: fmt.Sprintf("Sale %s created successfully", saleID),
	}
}

func validateDetails(d Details, items []cart.LineItem) error {
	switch {
	case d.Warehouse.ID == "":
		return &ValidationError{Field: FieldWarehouse}
	case d.Customer.ID == "":
		return &ValidationError{Field: FieldCustomer}
	case d.PaymentMethod == "":
		return &ValidationError{Field: FieldPaymentMethod}
	case len(items) == 0:
		return &ValidationError{Field: FieldItems}
	}
	return nil
}

func (s *Service) checkStock(items []cart.ResolvedItem) error {
	for _, it := range items {
		available := product.AuthoritativeStock(it.Product, it.VariationID)
		if s.honorWarehouseOverride {
			available = product.AvailableStock(it.Product, it.VariationID)
		}
		if it.Quantity <= available {
			continue
		}

		e := &StockError{
			ProductID:   it.ProductID,
			ProductName: it.Product.Name,
			VariationID: it.VariationID,
			Requested:   it.Quantity,
			Available:   available,
		}
		if it.Variation != nil {
			e.VariationName = it.Variation.Name
		}
		return e
	}
	return nil
}

func (s *Service) buildRecord(d Details, adj cart.Adjustments, t cart.Totals) *Record {
	return &Record{
		ID:             s.newID(),
		CustomerID:     d.Customer.ID,
		CustomerName:   d.Customer.Name,
		WarehouseID:    d.Warehouse.ID,
		WarehouseName:  d.Warehouse.Name,
		PaymentMethod:  d.PaymentMethod,
		Subtotal:       t.Subtotal,
		DiscountValue:  adj.TotalDiscount,
		DiscountType:   adj.TotalDiscountType,
		DiscountAmount: t.TotalDiscountAmount,
		TaxRate:        adj.TaxRate,
		TaxAmount:      t.TaxAmount,
		GrandTotal:     t.GrandTotal,
		Status:         StatusCompleted,
		Notes:          d.Notes,
		CreatedBy:      d.CreatedBy,
		PromoCode:      adj.PromoCode,
		CreatedAt:      s.now().UTC(),
	}
}

// dedupe keeps the first line for every composite key.
func dedupe(items []cart.ResolvedItem) []cart.ResolvedItem {
	seen := make(map[cart.Key]struct{}, len(items))
	out := make([]cart.ResolvedItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Key]; ok {
			continue
		}
		seen[it.Key] = struct{}{}
		out = append(out, it)
	}
	return out
}

func buildLines(saleID string, items []cart.ResolvedItem) []LineRecord {
	lines := make([]LineRecord, len(items))
	for i, it := range items {
		l := LineRecord{
			SaleID:               saleID,
			ProductID:            it.ProductID,
			ProductName:          it.Product.Name,
			VariationID:          it.VariationID,
			PackagingID:          it.PackagingID,
			PackagingName:        it.Packaging.Name,
			PackagingVariationID: it.PackagingVariationID,
			Quantity:             it.Quantity,
			UnitPrice:            it.UnitPrice,
			Discount:             it.Discount,
			DiscountType:         it.DiscountType,
			DiscountAmount:       it.DiscountAmount,
			TaxAmount:            decimal.Zero,
			Total:                it.Total,
			IsFreeGift:           it.IsFreeGift,
		}
		if it.Variation != nil {
			l.VariationName = it.Variation.Name
		}
		if it.PackagingVariation != nil {
			l.PackagingVariationName = it.PackagingVariation.Name
		}
		lines[i] = l
	}
	return lines
}

// costOf sums buying price times quantity; a missing buying price counts as 0.
func costOf(items []cart.ResolvedItem) decimal.Decimal {
	cost := decimal.Zero
	for _, it := range items {
		price := it.Product.BuyingPrice
		if it.Variation != nil {
			price = it.Variation.BuyingPrice
		}
		cost = cost.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return cost
}

func productIDs(items []cart.LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func newPersistenceError(op string, err error) *PersistenceError {
	pe := &PersistenceError{Op: op, Err: err}
	var de *DetailError
	if errors.As(err, &de) {
		pe.Detail = de.Detail
	}
	return pe
}

func failureKind(err error) string {
	var (
		validationErr  *ValidationError
		stockErr       *StockError
		persistenceErr *PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &stockErr):
		return "stock"
	case errors.As(err, &persistenceErr):
		return "persistence"
	default:
		return "failed"
	}
}

func (s *Service) logActivity(ctx context.Context, d Details, res Result) {
	err := s.activity.Log(ctx, activity.Entry{
		Action:     "create",
		EntityType: "sale",
		EntityID:   res.SaleID,
		Details: map[string]string{
			"customer":    d.Customer.Name,
			"warehouse":   d.Warehouse.Name,
			"grand_total": res.Revenue.StringFixed(2),
			"items":       strconv.Itoa(len(res.Items)),
		},
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		zctx.From(ctx).Warn("Failed to record sale activity", zap.String("sale_id", res.SaleID), zap.Error(err))
	}
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate() {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
