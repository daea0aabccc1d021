//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/erp-pos/internal/domain/activity"
	"github.com/xenking/erp-pos/internal/domain/auth"
	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/product"
	"github.com/xenking/erp-pos/internal/domain/promo"
	"github.com/xenking/erp-pos/internal/domain/sale"
	"github.com/xenking/erp-pos/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pos",
				"POSTGRES_PASSWORD": "pos",
				"POSTGRES_DB":       "pos",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://pos:pos@%s:%s/pos?sslmode=disable", host, port.Port())
	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// The schema must be re-appliable on every start.
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}
	if err := seed(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	return m.Run()
}

func seed(ctx context.Context) error {
	dir := postgres.NewDirectoryRepository(pool)
	products := postgres.NewProductRepository(pool)

	if err := dir.UpsertWarehouse(ctx, sale.Party{ID: "wh1", Name: "Main"}); err != nil {
		return err
	}
	if err := dir.UpsertCustomer(ctx, sale.Party{ID: "c1", Name: "Walk-in"}, ""); err != nil {
		return err
	}
	if err := dir.UpsertPackaging(ctx, product.Packaging{
		ID: "unit", Name: "Unit",
		Variations: []product.PackagingVariation{{ID: "unit-std", Name: "Standard"}},
	}); err != nil {
		return err
	}
	for _, p := range []product.Product{
		{ID: "coffee", Name: "Coffee", SKU: "COF", Price: decimal.NewFromInt(100), BuyingPrice: decimal.NewFromInt(60), Stock: 10},
		{ID: "shirt", Name: "Shirt", SKU: "SHI", Price: decimal.NewFromInt(80), Stock: 0},
	} {
		if err := dir.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	if err := dir.SetWarehouseStock(ctx, "wh1", "coffee", 3); err != nil {
		return err
	}
	return products.ImportVariations(ctx, []product.Variation{
		{
			ID: "shirt-l", ProductID: "shirt", Name: "L", SKU: "SHI-L",
			Price: decimal.NewFromInt(95), Stock: 4,
			Attributes: map[string]string{"size": "L"},
		},
	})
}

func TestProductRepository_Catalog(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewProductRepository(pool)

	cat, err := repo.Catalog(ctx, "wh1", []string{"coffee", "shirt"})
	require.NoError(t, err)

	coffee, ok := cat.Product("coffee")
	require.True(t, ok)
	require.NotNil(t, coffee.WarehouseStock)
	assert.Equal(t, 3, *coffee.WarehouseStock)
	assert.Equal(t, 10, coffee.Stock)
	assert.True(t, decimal.NewFromInt(60).Equal(coffee.BuyingPrice))

	shirt, ok := cat.Product("shirt")
	require.True(t, ok)
	assert.True(t, shirt.HasVariations)
	require.Len(t, shirt.Variations, 1)
	assert.Equal(t, "L", shirt.Variations[0].Attributes["size"])
	assert.Nil(t, shirt.WarehouseStock)

	unit, ok := cat.Packaging("unit")
	require.True(t, ok)
	require.Len(t, unit.Variations, 1)

	noWarehouse, err := repo.Catalog(ctx, "", []string{"coffee"})
	require.NoError(t, err)
	coffee, _ = noWarehouse.Product("coffee")
	assert.Nil(t, coffee.WarehouseStock)
}

func TestProductRepository_GetByID(t *testing.T) {
	repo := postgres.NewProductRepository(pool)

	p, err := repo.GetByID(context.Background(), "shirt")
	require.NoError(t, err)
	assert.Len(t, p.Variations, 1)

	_, err = repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestSaleService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sales := postgres.NewSaleRepository(pool)
	svc, err := sale.NewService(postgres.NewProductRepository(pool), sales,
		sale.WithActivityLogger(postgres.NewActivityRepository(pool)),
	)
	require.NoError(t, err)

	c := cart.New()
	c.Add(cart.Key{ProductID: "coffee", PackagingID: "unit"})
	c.Add(cart.Key{ProductID: "shirt", VariationID: "shirt-l", PackagingID: "unit", PackagingVariationID: "unit-std"})
	c.SetTaxRate(decimal.NewFromInt(10))

	res := svc.Checkout(ctx, c, sale.Details{
		Warehouse:     sale.Party{ID: "wh1", Name: "Main"},
		Customer:      sale.Party{ID: "c1", Name: "Walk-in"},
		PaymentMethod: "cash",
	})
	require.True(t, res.OK(), res.Message)

	recent, err := sales.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, res.SaleID, recent[0].ID)
	assert.True(t, decimal.RequireFromString("214.5").Equal(recent[0].GrandTotal), recent[0].GrandTotal.String())

	var lines int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM sale_items WHERE sale_id = $1`, res.SaleID).Scan(&lines))
	assert.Equal(t, 2, lines)

	var audits int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM activity_log WHERE entity_type = 'sale' AND entity_id = $1`, res.SaleID,
	).Scan(&audits))
	assert.Equal(t, 1, audits)
}

func TestSaleRepository_DetailError(t *testing.T) {
	sales := postgres.NewSaleRepository(pool)
	rec := &sale.Record{
		ID:         "dup-sale",
		Status:     sale.StatusCompleted,
		GrandTotal: decimal.Zero,
		CreatedAt:  time.Now(),
	}
	lines := []sale.LineRecord{{ProductID: "coffee", PackagingID: "unit", Quantity: 0, Total: decimal.Zero}}

	_, err := sales.CreateSale(context.Background(), rec, lines)
	require.Error(t, err)

	var de *sale.DetailError
	require.ErrorAs(t, err, &de)
	assert.NotEmpty(t, de.Detail.Message)

	// The failed line must roll back the header.
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM sales WHERE id = 'dup-sale'`).Scan(&n))
	assert.Zero(t, n)
}

func TestPromoRepository(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewPromoRepository(pool)
	require.NoError(t, repo.Upsert(ctx, promo.Rule{
		Code: "SAVE10", DiscountType: cart.DiscountPercentage, Value: decimal.NewFromInt(10), MaxUses: 1,
	}))

	// Applying a code to carts does not spend it.
	v := promo.NewRepoValidator(repo)
	for range 2 {
		d, err := v.Validate(ctx, "save10", 1)
		require.NoError(t, err)
		assert.Equal(t, cart.DiscountPercentage, d.Type)
	}

	// The first sale redeems the last use; the second is refused and rolled back.
	sales := postgres.NewSaleRepository(pool)
	line := []sale.LineRecord{{
		ProductID: "coffee", ProductName: "Coffee", PackagingID: "unit", PackagingName: "Unit",
		Quantity: 1, UnitPrice: decimal.NewFromInt(100), Total: decimal.NewFromInt(100),
	}}
	newRecord := func(id string) *sale.Record {
		return &sale.Record{
			ID: id, CustomerID: "c1", CustomerName: "Walk-in", WarehouseID: "wh1", WarehouseName: "Main",
			PaymentMethod: "cash", Subtotal: decimal.NewFromInt(100), GrandTotal: decimal.NewFromInt(90),
			Status: sale.StatusCompleted, PromoCode: "save10", CreatedAt: time.Now(),
		}
	}
	_, err := sales.CreateSale(ctx, newRecord("promo-sale-1"), line)
	require.NoError(t, err)

	_, err = sales.CreateSale(ctx, newRecord("promo-sale-2"), line)
	require.ErrorIs(t, err, sale.ErrPromoUnavailable)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM sales WHERE id = 'promo-sale-2'`).Scan(&n))
	assert.Zero(t, n)

	rule, err := repo.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)

	_, err = v.Validate(ctx, "SAVE10", 1)
	require.ErrorIs(t, err, promo.ErrUsageLimitReached)

	_, err = repo.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, promo.ErrInvalidCode)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAPIKeyRepository(pool)
	hash := auth.HashKey([]byte("pepper"), "secret")
	require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{ID: "k1", KeyHash: hash, Name: "till", Scopes: []string{auth.ScopeSell}}))

	info, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, info.Allows(auth.ScopeSell))
	assert.False(t, info.Allows(auth.ScopeReports))

	_, err = repo.FindByHash(ctx, "deadbeef")
	require.Error(t, err)
}

func TestDirectoryRepository(t *testing.T) {
	dir := postgres.NewDirectoryRepository(pool)

	w, err := dir.Warehouse(context.Background(), "wh1")
	require.NoError(t, err)
	assert.Equal(t, "Main", w.Name)

	_, err = dir.Customer(context.Background(), "ghost")
	require.ErrorIs(t, err, sale.ErrUnknownParty)
}

func TestActivityRepository(t *testing.T) {
	repo := postgres.NewActivityRepository(pool)
	err := repo.Log(context.Background(), activity.Entry{
		Action: "test", EntityType: "check", EntityID: "1", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}
