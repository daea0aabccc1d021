// Command variation-import bulk loads product variations from gzip-compressed
// NDJSON files, rejecting duplicate attribute combinations and SKUs before
// anything is written.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/erp-pos/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL string
		opts        options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expected, "expected", 1_000_000, "expected number of variations per file, sizes the bloom filters")
	flag.IntVar(&opts.batchSize, "batch-size", 1000, "variations written per transaction")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate only, do not write")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: variation-import [flags] file.ndjson.gz ...")
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, opts); err != nil {
		slog.Error("variation import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("variation import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, opts options) error {
	if opts.batchSize <= 0 {
		opts.batchSize = 1000
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	variations, err := load(ctx, files, opts)
	if err != nil {
		return err
	}
	slog.Info("variations validated", slog.Int("count", len(variations)))

	if opts.dryRun || len(variations) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewProductRepository(pool)
	for start := 0; start < len(variations); start += opts.batchSize {
		end := min(start+opts.batchSize, len(variations))
		if err := repo.ImportVariations(ctx, variations[start:end]); err != nil {
			return errors.Wrapf(err, "import variations %d..%d", start+1, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(variations)))
	}

	return nil
}
