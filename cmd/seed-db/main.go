package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/auth"
	"github.com/xenking/erp-pos/internal/domain/cart"
	"github.com/xenking/erp-pos/internal/domain/product"
	"github.com/xenking/erp-pos/internal/domain/promo"
	"github.com/xenking/erp-pos/internal/domain/sale"
	"github.com/xenking/erp-pos/internal/storage/postgres"
)

type seedFile struct {
	Warehouses []partyJSON     `json:"warehouses"`
	Customers  []customerJSON  `json:"customers"`
	Packagings []packagingJSON `json:"packagings"`
	Products   []productJSON   `json:"products"`
	Stock      []stockJSON     `json:"warehouseStock"`
	PromoCodes []promoJSON     `json:"promoCodes"`
}

type partyJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type customerJSON struct {
	partyJSON
	Phone string `json:"phone"`
}

type packagingJSON struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Variations []partyJSON `json:"variations"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	BuyingPrice decimal.Decimal `json:"buyingPrice"`
	Stock       int             `json:"stock"`
	Variations  []variationJSON `json:"variations"`
}

type variationJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	SKU         string            `json:"sku"`
	Price       decimal.Decimal   `json:"price"`
	BuyingPrice decimal.Decimal   `json:"buyingPrice"`
	Stock       int               `json:"stock"`
	Attributes  map[string]string `json:"attributes"`
}

type stockJSON struct {
	WarehouseID string `json:"warehouseId"`
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
}

type promoJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Value        decimal.Decimal `json:"value"`
	MinItems     int             `json:"minItems"`
	Description  string          `json:"description"`
	MaxUses      int             `json:"maxUses"`
}

func main() {
	_ = godotenv.Load()

	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to the seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or POS_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POS_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("POS_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or POS_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("POS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}
	if err := validateVariations(seed.Products); err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	dir := postgres.NewDirectoryRepository(pool)

	if err := seedParties(ctx, dir, seed); err != nil {
		return errors.Wrap(err, "seed warehouses and customers")
	}
	if err := seedCatalog(ctx, dir, postgres.NewProductRepository(pool), seed); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedPromoCodes(ctx, postgres.NewPromoRepository(pool), seed.PromoCodes); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func validateVariations(products []productJSON) error {
	var drafts []product.VariationDraft
	for _, p := range products {
		for _, v := range p.Variations {
			drafts = append(drafts, product.VariationDraft{ProductID: p.ID, SKU: v.SKU, Attributes: v.Attributes})
		}
	}
	if err := product.ValidateCombinations(drafts); err != nil {
		return errors.Wrap(err, "validate variations")
	}
	return nil
}

func seedParties(ctx context.Context, dir *postgres.DirectoryRepository, seed seedFile) error {
	for _, w := range seed.Warehouses {
		if err := dir.UpsertWarehouse(ctx, sale.Party{ID: w.ID, Name: w.Name}); err != nil {
			return err
		}
		slog.Info("upserted warehouse", slog.String("id", w.ID), slog.String("name", w.Name))
	}
	for _, c := range seed.Customers {
		if err := dir.UpsertCustomer(ctx, sale.Party{ID: c.ID, Name: c.Name}, c.Phone); err != nil {
			return err
		}
		slog.Info("upserted customer", slog.String("id", c.ID), slog.String("name", c.Name))
	}
	return nil
}

func seedCatalog(
	ctx context.Context,
	dir *postgres.DirectoryRepository,
	products *postgres.ProductRepository,
	seed seedFile,
) error {
	for _, pk := range seed.Packagings {
		p := product.Packaging{ID: pk.ID, Name: pk.Name}
		for _, v := range pk.Variations {
			p.Variations = append(p.Variations, product.PackagingVariation{ID: v.ID, PackagingID: pk.ID, Name: v.Name})
		}
		if err := dir.UpsertPackaging(ctx, p); err != nil {
			return err
		}
	}
	slog.Info("upserted packagings", slog.Int("count", len(seed.Packagings)))

	var variations []product.Variation
	for _, p := range seed.Products {
		if err := dir.UpsertProduct(ctx, product.Product{
			ID:            p.ID,
			Name:          p.Name,
			SKU:           p.SKU,
			Price:         p.Price,
			BuyingPrice:   p.BuyingPrice,
			Stock:         p.Stock,
			HasVariations: len(p.Variations) > 0,
		}); err != nil {
			return err
		}
		for _, v := range p.Variations {
			variations = append(variations, product.Variation{
				ID:          v.ID,
				ProductID:   p.ID,
				Name:        v.Name,
				SKU:         v.SKU,
				Price:       v.Price,
				BuyingPrice: v.BuyingPrice,
				Stock:       v.Stock,
				Attributes:  v.Attributes,
			})
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	if len(variations) > 0 {
		if err := products.ImportVariations(ctx, variations); err != nil {
			return err
		}
		slog.Info("upserted variations", slog.Int("count", len(variations)))
	}

	for _, s := range seed.Stock {
		if err := dir.SetWarehouseStock(ctx, s.WarehouseID, s.ProductID, s.Quantity); err != nil {
			return err
		}
	}
	slog.Info("set warehouse stock", slog.Int("rows", len(seed.Stock)))
	return nil
}

func seedPromoCodes(ctx context.Context, repo *postgres.PromoRepository, codes []promoJSON) error {
	for _, c := range codes {
		t := cart.DiscountType(c.DiscountType)
		if !t.Valid() {
			return errors.Errorf("promo code %s: unknown discount type %q", c.Code, c.DiscountType)
		}
		if err := repo.Upsert(ctx, promo.Rule{
			Code:         c.Code,
			DiscountType: t,
			Value:        c.Value,
			MinItems:     c.MinItems,
			Description:  c.Description,
			MaxUses:      c.MaxUses,
		}); err != nil {
			return err
		}

		slog.Info("upserted promo code", slog.String("code", c.Code), slog.String("description", c.Description))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default till",
		Scopes:  []string{auth.ScopeSell, auth.ScopeReports},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default till"))
	return nil
}
