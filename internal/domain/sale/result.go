package sale

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/erp-pos/internal/domain/cart"
)

// State is the phase of a checkout attempt.
type State int

// Checkout phases. An attempt moves Idle -> Validating -> Submitting and ends
// in Succeeded or Failed.
const (
	Idle State = iota
	Validating
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a checkout. Err is one of *ValidationError,
// *StockError or *PersistenceError when State is Failed.
type Result struct {
	State   State
	SaleID  string
	Revenue decimal.Decimal
	Profit  decimal.Decimal
	Totals  cart.Totals
	Items   []cart.ResolvedItem
	Message string
	Err     error
}

// OK reports whether the sale was persisted.
func (r Result) OK() bool {
	return r.State == Succeeded
}

func failed(err error) Result {
	return Result{State: Failed, Message: err.Error(), Err: err}
}
