package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func call(t *testing.T, h http.HandlerFunc) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var b body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return w.Code, b
}

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// runN evaluates every registered check n times synchronously.
func runN(h *Health, n int) {
	for range n {
		for _, c := range append(h.snapshot(true), h.snapshot(false)...) {
			c.run(context.Background())
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		runs       int
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "no checks", runs: 0, wantStatus: http.StatusOK},
		{name: "passing", check: pass, runs: 1, wantStatus: http.StatusOK},
		{name: "failing below threshold", check: fail("boom"), runs: 2, wantStatus: http.StatusOK},
		{
			name: "failing at threshold", check: fail("boom"), runs: 3,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"probe": "boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			if tt.check != nil {
				h.AddLivenessCheck("probe", time.Second, tt.check)
			}
			runN(h, tt.runs)

			code, b := call(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantChecks == nil {
				assert.Equal(t, "ok", b.Status)
				assert.Empty(t, b.Checks)
			} else {
				assert.Equal(t, "unhealthy", b.Status)
				assert.Equal(t, tt.wantChecks, b.Checks)
			}
		})
	}
}

func TestReadyEndpoint_ManualSwitch(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, pass)
	runN(h, 1)

	code, b := call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, b.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneFailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, pass)
	h.AddReadinessCheckWithThresholds("cache", time.Second, fail("cold"), Thresholds{Failure: 1})
	runN(h, 1)

	code, b := call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"cache": "cold"}, b.Checks)
	assert.False(t, h.IsReady())
}

func TestCheckRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	fn := func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	}

	h := New()
	h.AddLivenessCheckWithThresholds("flaky", time.Second, fn, Thresholds{Failure: 1, Success: 2})
	runN(h, 1)
	code, _ := call(t, h.LiveEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, code)

	failing.Store(false)
	runN(h, 1)
	code, _ = call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "one pass is below the success threshold")

	runN(h, 1)
	code, _ = call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.AddLivenessCheckWithThresholds("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, Thresholds{Failure: 1})
	runN(h, 1)

	code, b := call(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, b.Checks["slow"], "deadline")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddLivenessCheck("count", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	time.Sleep(20 * time.Millisecond)
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(stubPinger{})(ctx))
	assert.ErrorContains(t, PingCheck(stubPinger{err: errors.New("refused")})(ctx), "refused")

	assert.NoError(t, GoroutineCountCheck(1<<20)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	n := 5
	count := func() int { return n }
	assert.NoError(t, CapacityCheck("carts", count, 10)(ctx))
	assert.NoError(t, CapacityCheck("carts", count, 0)(ctx))
	assert.ErrorContains(t, CapacityCheck("carts", count, 4)(ctx), "5 carts exceeds limit 4")
}
