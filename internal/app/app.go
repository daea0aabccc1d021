package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/erp-pos/internal/cartstore"
	"github.com/xenking/erp-pos/internal/domain/promo"
	"github.com/xenking/erp-pos/internal/domain/sale"
	"github.com/xenking/erp-pos/internal/handler"
	"github.com/xenking/erp-pos/internal/salecache"
	"github.com/xenking/erp-pos/internal/storage/postgres"
	"github.com/xenking/erp-pos/pkg/health"
	"github.com/xenking/erp-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)
	directory := postgres.NewDirectoryRepository(pool)

	// Open carts live in memory and are swept when idle.
	carts := cartstore.New(cfg.Carts.TTL)
	go carts.Run(ctx, cfg.Carts.SweepInterval, func(removed int) {
		lg.Info("Swept idle carts", zap.Int("removed", removed), zap.Int("open", carts.Len()))
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("carts", time.Second, health.CapacityCheck("open carts", carts.Len, cfg.Carts.MaxOpen))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	recentSales := salecache.New(saleRepo, cfg.Sales.RecentCacheTTL)
	saleService, err := sale.NewService(productRepo, saleRepo,
		sale.WithCacheInvalidator(recentSales),
		sale.WithNotifier(handler.LogNotifier{}),
		sale.WithActivityLogger(activityRepo),
		sale.WithWarehouseOverride(cfg.Sales.HonorWarehouseOverride),
		sale.WithTracerProvider(m.TracerProvider()),
		sale.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create sale service")
	}
	promoValidator := promo.NewRepoValidator(promoRepo)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			MaxOpenCarts:      cfg.Carts.MaxOpen,
			DefaultSalesLimit: cfg.Sales.DefaultLimit,
			MaxSalesLimit:     cfg.Sales.MaxLimit,
		},
		productRepo,
		carts,
		saleService,
		recentSales,
		promoValidator,
		directory,
	)
	authenticator := handler.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, authenticator)

	api := otelhttp.NewHandler(mux, "pos-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(api,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server",
			zap.Duration("timeout", cfg.Graceful.ShutdownTimeout),
			zap.Int("open_carts", carts.Len()),
		)
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
