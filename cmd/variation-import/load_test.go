package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/erp-pos/internal/domain/product"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseVariation(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    product.Variation
		wantErr string
	}{
		{
			name: "full record",
			line: `{"id":"v1","productId":"p1","name":"L","sku":"P1-L","price":"19.90","buyingPrice":7,"stock":4,"attributes":{"size":"L"},"extra":[1,2]}`,
			want: product.Variation{
				ID: "v1", ProductID: "p1", Name: "L", SKU: "P1-L",
				Price: decimal.RequireFromString("19.90"), BuyingPrice: decimal.NewFromInt(7), Stock: 4,
				Attributes: map[string]string{"size": "L"},
			},
		},
		{name: "missing id", line: `{"productId":"p1"}`, wantErr: "id is required"},
		{name: "missing product", line: `{"id":"v1"}`, wantErr: "productId is required"},
		{name: "negative price", line: `{"id":"v1","productId":"p1","price":-1}`, wantErr: "negative price"},
		{name: "bad price", line: `{"id":"v1","productId":"p1","price":true}`, wantErr: "expected number"},
		{name: "malformed", line: `{"id":`, wantErr: "decode variation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariation([]byte(tt.line))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Price.Equal(got.Price))
			assert.True(t, tt.want.BuyingPrice.Equal(got.BuyingPrice))
			tt.want.Price, got.Price = decimal.Zero, decimal.Zero
			tt.want.BuyingPrice, got.BuyingPrice = decimal.Zero, decimal.Zero
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	opts := options{expected: 100, batchSize: 10}

	t.Run("distinct files", func(t *testing.T) {
		dir := t.TempDir()
		a := writeGz(t, dir, "a.ndjson.gz",
			`{"id":"s","productId":"shirt","sku":"SHIRT-S","price":10,"attributes":{"size":"S"}}`,
			"",
			`{"id":"m","productId":"shirt","sku":"SHIRT-M","price":10,"attributes":{"size":"M"}}`,
		)
		b := writeGz(t, dir, "b.ndjson.gz",
			`{"id":"l","productId":"shirt","sku":"SHIRT-L","price":12,"attributes":{"size":"L"}}`,
		)

		got, err := load(context.Background(), []string{a, b}, opts)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "s", got[0].ID)
		assert.Equal(t, "l", got[2].ID)
	})

	t.Run("sku shared across files", func(t *testing.T) {
		dir := t.TempDir()
		a := writeGz(t, dir, "a.ndjson.gz", `{"id":"a1","productId":"mug","sku":"mug-1"}`)
		b := writeGz(t, dir, "b.ndjson.gz", `{"id":"b1","productId":"cup","sku":" MUG-1 "}`)

		_, err := load(context.Background(), []string{a, b}, opts)
		var dupErr *CrossFileSKUError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, []string{"MUG-1"}, dupErr.SKUs)
	})

	t.Run("combination repeated in one file", func(t *testing.T) {
		dir := t.TempDir()
		a := writeGz(t, dir, "a.ndjson.gz",
			`{"id":"a1","productId":"shirt","attributes":{"size":"M","color":"Red"}}`,
			`{"id":"a2","productId":"shirt","attributes":{"color":"red","size":"m"}}`,
		)

		_, err := load(context.Background(), []string{a}, opts)
		var dupErr *product.DuplicateCombinationError
		require.True(t, errors.As(err, &dupErr), "got %v", err)
		assert.Equal(t, "color=red;size=m", dupErr.Combination)
	})

	t.Run("combination repeated across files", func(t *testing.T) {
		dir := t.TempDir()
		a := writeGz(t, dir, "a.ndjson.gz", `{"id":"a1","productId":"shirt","sku":"A","attributes":{"size":"M"}}`)
		b := writeGz(t, dir, "b.ndjson.gz", `{"id":"b1","productId":"shirt","sku":"B","attributes":{"size":"M"}}`)

		_, err := load(context.Background(), []string{a, b}, opts)
		var dupErr *product.DuplicateCombinationError
		require.ErrorAs(t, err, &dupErr)
		assert.Empty(t, dupErr.SKU)
	})

	t.Run("bad line names its position", func(t *testing.T) {
		dir := t.TempDir()
		a := writeGz(t, dir, "a.ndjson.gz", `{"id":"a1","productId":"p"}`, `{"id":"a2"}`)

		_, err := load(context.Background(), []string{a}, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestCrossFileDuplicates(t *testing.T) {
	got := crossFileDuplicates([]fileResult{
		{candidates: map[string]uint{"A": 1, "B": 1}},
		{candidates: map[string]uint{"A": 2, "C": 2}},
		{candidates: map[string]uint{"C": 4}},
	})
	assert.Equal(t, []string{"A", "C"}, got)
}
