package promo

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/erp-pos/internal/domain/cart"
)

type mockPromoRepo struct {
	rule    *Rule
	err     error
	lookups int
}

func (m *mockPromoRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	m.lookups++
	return m.rule, m.err
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	yesterday := fixedNow.Add(-24 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name      string
		repo      *mockPromoRepo
		units     int
		wantType  cart.DiscountType
		wantValue decimal.Decimal
		wantErr   error
	}{
		{
			name: "percentage code",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "RAMADAN10",
				DiscountType: cart.DiscountPercentage,
				Value:        decimal.NewFromInt(10),
			}},
			units:     1,
			wantType:  cart.DiscountPercentage,
			wantValue: decimal.NewFromInt(10),
		},
		{
			name: "fixed code",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "MINUS5K",
				DiscountType: cart.DiscountFixed,
				Value:        decimal.NewFromInt(5000),
			}},
			units:     1,
			wantType:  cart.DiscountFixed,
			wantValue: decimal.NewFromInt(5000),
		},
		{
			name:    "unknown code",
			repo:    &mockPromoRepo{err: ErrInvalidCode},
			units:   1,
			wantErr: ErrInvalidCode,
		},
		{
			name: "min units not met",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "BULK",
				DiscountType: cart.DiscountPercentage,
				Value:        decimal.NewFromInt(5),
				MinItems:     10,
			}},
			units:   9,
			wantErr: ErrInvalidCode,
		},
		{
			name: "expired",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "OLD",
				DiscountType: cart.DiscountPercentage,
				Value:        decimal.NewFromInt(5),
				ValidUntil:   &yesterday,
			}},
			units:   1,
			wantErr: ErrExpired,
		},
		{
			name: "not yet valid",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "SOON",
				DiscountType: cart.DiscountPercentage,
				Value:        decimal.NewFromInt(5),
				ValidFrom:    &tomorrow,
			}},
			units:   1,
			wantErr: ErrExpired,
		},
		{
			name: "usage limit reached",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "LIMITED",
				DiscountType: cart.DiscountFixed,
				Value:        decimal.NewFromInt(5),
				MaxUses:      3,
				Uses:         3,
			}},
			units:   1,
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "unlimited uses",
			repo: &mockPromoRepo{rule: &Rule{
				Code:         "ALWAYS",
				DiscountType: cart.DiscountFixed,
				Value:        decimal.NewFromInt(1),
				Uses:         9999,
			}},
			units:     1,
			wantType:  cart.DiscountFixed,
			wantValue: decimal.NewFromInt(1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "ANY", tt.units)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.True(t, tt.wantValue.Equal(got.Value))
			assert.Equal(t, tt.repo.rule.Code, got.Code)
		})
	}
}

func TestRepoValidator_LookupError(t *testing.T) {
	v := NewRepoValidator(&mockPromoRepo{err: errors.New("connection reset")})

	_, err := v.Validate(context.Background(), "X", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup promo code")
}

func TestRepoValidator_RepeatedValidationKeepsLastUse(t *testing.T) {
	repo := &mockPromoRepo{rule: &Rule{
		Code:         "ONCE",
		DiscountType: cart.DiscountFixed,
		Value:        decimal.NewFromInt(1),
		MaxUses:      1,
	}}
	v := NewRepoValidator(repo)

	for range 3 {
		_, err := v.Validate(context.Background(), "ONCE", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, repo.lookups)
	assert.Zero(t, repo.rule.Uses)
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Rule{Code: "BAD", DiscountType: "free_lowest"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}

func TestDiscount_ApplyTo(t *testing.T) {
	c := cart.New()
	Discount{Code: "MINUS15", Type: cart.DiscountFixed, Value: decimal.NewFromInt(15)}.ApplyTo(c)

	adj := c.Adjustments()
	assert.Equal(t, cart.DiscountFixed, adj.TotalDiscountType)
	assert.True(t, decimal.NewFromInt(15).Equal(adj.TotalDiscount))
	assert.Equal(t, "MINUS15", adj.PromoCode)
}
