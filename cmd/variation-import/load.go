package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/erp-pos/internal/domain/product"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 1 << 20
)

type options struct {
	expected  uint
	batchSize int
	dryRun    bool
}

// fileResult holds the parsed variations of one file and the SKUs that may
// also appear in another file.
type fileResult struct {
	variations []product.Variation
	candidates map[string]uint
}

// CrossFileSKUError reports SKUs that appear in more than one input file.
type CrossFileSKUError struct {
	SKUs []string
}

func (e *CrossFileSKUError) Error() string {
	return fmt.Sprintf("%d SKUs appear in more than one file, first %q", len(e.SKUs), e.SKUs[0])
}

// load parses and validates every file. Duplicates inside a file are found
// exactly while parsing; SKUs shared between files are found with one bloom
// filter per file so that no file's SKU set has to be compared directly.
func load(ctx context.Context, files []string, opts options) ([]product.Variation, error) {
	if opts.expected == 0 {
		opts.expected = 1
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts.expected)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Parse, validate per file and collect cross-file candidates.
	slog.Info("pass 2: parsing and validating")

	results, err := scanFiles(ctx, files, filters)
	if err != nil {
		return nil, errors.Wrap(err, "scan files")
	}

	if dups := crossFileDuplicates(results); len(dups) > 0 {
		return nil, &CrossFileSKUError{SKUs: dups}
	}

	var all []product.Variation
	for _, r := range results {
		all = append(all, r.variations...)
	}

	// SKUs are settled; attribute combinations are compared across files.
	drafts := make([]product.VariationDraft, len(all))
	for i, v := range all {
		drafts[i] = product.VariationDraft{ProductID: v.ProductID, Attributes: v.Attributes}
	}
	if err := product.ValidateCombinations(drafts); err != nil {
		return nil, errors.Wrap(err, "validate combinations across files")
	}

	return all, nil
}

// buildBloomFilters creates one SKU bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var count int

			err := streamGzFile(ctx, f, func(line []byte) error {
				v, err := parseVariation(line)
				if err != nil {
					return err
				}
				if sku := product.NormalizeSKU(v.SKU); sku != "" {
					filter.AddString(sku)
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Int("variations", count))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Int("total_variations", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFiles re-streams each file, keeps its variations, rejects duplicates
// inside it and marks SKUs that test positive in another file's filter.
func scanFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			var (
				variations []product.Variation
				drafts     []product.VariationDraft
				candidates = make(map[string]uint)
				fileBit    = uint(1) << uint(i)
			)

			err := streamGzFile(ctx, f, func(line []byte) error {
				v, err := parseVariation(line)
				if err != nil {
					return err
				}
				variations = append(variations, v)
				drafts = append(drafts, product.VariationDraft{ProductID: v.ProductID, SKU: v.SKU, Attributes: v.Attributes})

				sku := product.NormalizeSKU(v.SKU)
				if sku == "" {
					return nil
				}
				for j, other := range filters {
					if j != i && other.TestString(sku) {
						candidates[sku] |= fileBit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			if err := product.ValidateCombinations(drafts); err != nil {
				return errors.Wrapf(err, "validate %s", f)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Int("variations", len(variations)),
				slog.Int("candidates", len(candidates)),
			)
			results[i] = fileResult{variations: variations, candidates: candidates}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// crossFileDuplicates merges the candidate bitmasks and keeps SKUs flagged
// by two or more files, sorted.
func crossFileDuplicates(results []fileResult) []string {
	merged := make(map[string]uint)
	for _, r := range results {
		for sku, mask := range r.candidates {
			merged[sku] |= mask
		}
	}

	var dups []string
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dups = append(dups, sku)
		}
	}
	slices.Sort(dups)
	return dups
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// parseVariation decodes one NDJSON record.
func parseVariation(line []byte) (product.Variation, error) {
	var v product.Variation
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var (
			s   string
			err error
		)
		switch key {
		case "id":
			s, err = d.Str()
			v.ID = s
		case "productId":
			s, err = d.Str()
			v.ProductID = s
		case "name":
			s, err = d.Str()
			v.Name = s
		case "sku":
			s, err = d.Str()
			v.SKU = s
		case "price":
			v.Price, err = decodeDecimal(d)
		case "buyingPrice":
			v.BuyingPrice, err = decodeDecimal(d)
		case "stock":
			v.Stock, err = d.Int()
		case "attributes":
			v.Attributes = make(map[string]string)
			err = d.Obj(func(d *jx.Decoder, key string) error {
				val, err := d.Str()
				v.Attributes[key] = val
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return v, errors.Wrap(err, "decode variation")
	}

	switch {
	case v.ID == "":
		return v, errors.New("variation id is required")
	case v.ProductID == "":
		return v, errors.Errorf("variation %s: productId is required", v.ID)
	case v.Price.IsNegative():
		return v, errors.Errorf("variation %s: negative price", v.ID)
	}
	return v, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.New("expected number")
	}
}
