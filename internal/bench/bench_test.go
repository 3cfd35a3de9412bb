package bench

import (
	"bytes"
	"context"
	"testing"
	"time"

	awaitable "github.com/Swind/go-awaitable"
	"github.com/Swind/go-awaitable/core"
	"github.com/Swind/go-awaitable/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecorator(t *testing.T, workers int) *awaitable.Decorator {
	t.Helper()
	logger := core.NewNoOpLogger()
	d, err := awaitable.New(awaitable.FromConfig(awaitable.PoolConfig{
		ID:      "bench-test",
		Workers: workers,
		Logger:  logger,
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// TestRun_Counts tests the run summary
// Main test items:
// 1. Every call is accounted for as ok or failed
// 2. fail_every picks the failing calls
// 3. Peak concurrency never exceeds the worker count
func TestRun_Counts(t *testing.T) {
	d := newDecorator(t, 3)

	res, err := Run(context.Background(), d, config.BenchConfig{
		Calls:     12,
		Work:      2 * time.Millisecond,
		FailEvery: 4,
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 12, res.Calls)
	assert.Equal(t, 9, res.OK)
	assert.Equal(t, 3, res.Failed)
	assert.Zero(t, res.Cancelled)
	assert.LessOrEqual(t, res.PeakConcurrency, 3)
	assert.Positive(t, res.PeakConcurrency)
	assert.Equal(t, "(*worker).simulate", res.Function)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_RateLimited(t *testing.T) {
	d := newDecorator(t, 2)

	start := time.Now()
	res, err := Run(context.Background(), d, config.BenchConfig{Calls: 5, Rate: 100}, core.NewNoOpLogger())

	require.NoError(t, err)
	assert.Equal(t, 5, res.OK)
	// Burst of one: the last four submissions wait about 10ms each
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRun_ContextCancelled(t *testing.T) {
	d := newDecorator(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, d, config.BenchConfig{Calls: 3, Rate: 1}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ShutdownCancels(t *testing.T) {
	d := newDecorator(t, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = d.Close()
	}()

	res, err := Run(context.Background(), d, config.BenchConfig{Calls: 20, Work: 5 * time.Millisecond}, nil)

	require.NoError(t, err)
	assert.Equal(t, 20, res.OK+res.Failed+res.Cancelled)
	assert.Positive(t, res.Cancelled)
}

func TestResult_Print(t *testing.T) {
	var buf bytes.Buffer
	r := Result{RunID: "r1", Function: "fn", Calls: 3, OK: 2, Failed: 1, PeakConcurrency: 2, Elapsed: 1500 * time.Microsecond}

	require.NoError(t, r.Print(&buf))

	assert.Equal(t, "run r1: 3 calls to fn, ok=2 failed=1 cancelled=0 peak_concurrency=2 elapsed=2ms\n", buf.String())
}
