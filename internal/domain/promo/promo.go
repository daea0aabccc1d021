// Package promo resolves promotion codes into cart-wide discounts.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/cart"
)

var (
	// ErrInvalidCode is returned when a code is unknown, inactive, or the cart
	// does not hold enough units for it.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrExpired is returned when a code is outside its validity window.
	ErrExpired = errors.New("promo code expired")
	// ErrUsageLimitReached is returned when a code has exhausted its uses.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule is a stored promotion.
type Rule struct {
	Code         string
	DiscountType cart.DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Discount is the cart-wide discount a code grants.
type Discount struct {
	Code        string
	Type        cart.DiscountType
	Value       decimal.Decimal
	Description string
}

// Repository looks up promotion rules. Uses are counted by the sale
// repository when a sale carrying the code is written.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Apply checks the unit-count requirement and turns the rule into a discount.
func Apply(rule *Rule, units int) (Discount, error) {
	if rule.MinItems > 0 && units < rule.MinItems {
		return Discount{}, ErrInvalidCode
	}
	if !rule.DiscountType.Valid() {
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}
	return Discount{
		Code:        rule.Code,
		Type:        rule.DiscountType,
		Value:       rule.Value,
		Description: rule.Description,
	}, nil
}

// ApplyTo sets the cart-wide discount on c and remembers the code so the
// sale can redeem it.
func (d Discount) ApplyTo(c *cart.Cart) {
	c.SetTotalDiscountType(d.Type)
	c.SetTotalDiscount(d.Value)
	c.SetPromoCode(d.Code)
}
