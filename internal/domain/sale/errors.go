package sale

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnknownParty is returned by directory lookups for an id that does not
// name a warehouse or customer.
var ErrUnknownParty = errors.New("unknown warehouse or customer")

// ErrPromoUnavailable is returned by Repository.CreateSale when the sale's
// promo code can no longer be redeemed.
var ErrPromoUnavailable = errors.New("promo code can no longer be redeemed")

// Field names a required sale field.
type Field string

// Required fields, in the order they are validated.
const (
	FieldWarehouse     Field = "warehouse"
	FieldCustomer      Field = "customer"
	FieldPaymentMethod Field = "payment_method"
	FieldItems         Field = "items"
	FieldPromoCode     Field = "promo_code"
)

// ValidationError reports a missing required field or an empty cart.
type ValidationError struct {
	Field Field
}

func (e *ValidationError) Error() string {
	switch e.Field {
	case FieldWarehouse:
		return "Please select a warehouse"
	case FieldCustomer:
		return "Please select a customer"
	case FieldPaymentMethod:
		return "Please select a payment method"
	case FieldItems:
		return "Please add at least one item to the cart"
	case FieldPromoCode:
		return "The promo code is no longer available, remove it and try again"
	default:
		return fmt.Sprintf("Missing required field %s", e.Field)
	}
}

// StockError reports a line whose quantity exceeds available stock.
type StockError struct {
	ProductID     string
	ProductName   string
	VariationID   string
	VariationName string
	Requested     int
	Available     int
}

func (e *StockError) Error() string {
	name := e.ProductName
	if e.VariationName != "" {
		name = fmt.Sprintf("%s (%s)", e.ProductName, e.VariationName)
	}
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", name, e.Available)
}

// ErrorDetail carries the structured fields a storage backend may attach to
// a failure.
type ErrorDetail struct {
	Message string
	Details string
	Hint    string
}

// Text returns the first non-empty of Message, Details and Hint.
func (d ErrorDetail) Text() string {
	for _, s := range []string{d.Message, d.Details, d.Hint} {
		if s != "" {
			return s
		}
	}
	return ""
}

// DetailError is returned by storage backends that can describe a failure
// with structured fields.
type DetailError struct {
	Detail ErrorDetail
	Err    error
}

func (e *DetailError) Error() string {
	if s := e.Detail.Text(); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "storage error"
}

func (e *DetailError) Unwrap() error { return e.Err }

// PersistenceError reports a failure of a storage collaborator. The sale is
// assumed not to be persisted.
type PersistenceError struct {
	Op     string
	Detail ErrorDetail
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("Failed to %s: %s", e.Op, e.Reason())
}

// Reason is the best-effort description of the underlying failure.
func (e *PersistenceError) Reason() string {
	if s := e.Detail.Text(); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *PersistenceError) Unwrap() error { return e.Err }
