package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by connection pools.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than threshold goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// CapacityCheck fails when count reports more than limit, e.g. open carts.
// A non-positive limit disables the check.
func CapacityCheck(what string, count func() int, limit int) CheckFunc {
	return func(context.Context) error {
		if limit <= 0 {
			return nil
		}
		if n := count(); n > limit {
			return errors.Errorf("%d %s exceeds limit %d", n, what, limit)
		}
		return nil
	}
}
