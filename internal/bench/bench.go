// Package bench drives simulated load through a wrapped function so pool
// sizing and shutdown behaviour can be observed end to end.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	awaitable "github.com/Swind/go-awaitable"
	"github.com/Swind/go-awaitable/core"
	"github.com/Swind/go-awaitable/internal/config"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrSimulated is returned by calls chosen to fail by BenchConfig.FailEvery.
var ErrSimulated = errors.New("simulated failure")

// Result summarizes one run.
type Result struct {
	RunID           string
	Function        string
	Calls           int
	OK              int
	Failed          int
	Cancelled       int
	PeakConcurrency int
	Elapsed         time.Duration
}

// Print writes a human readable summary to w.
func (r Result) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"run %s: %d calls to %s, ok=%d failed=%d cancelled=%d peak_concurrency=%d elapsed=%s\n",
		r.RunID, r.Calls, r.Function, r.OK, r.Failed, r.Cancelled, r.PeakConcurrency, r.Elapsed.Round(time.Millisecond))
	return err
}

type worker struct {
	work      time.Duration
	failEvery int

	inFlight atomic.Int32
	peak     atomic.Int32
}

// simulate sleeps for the configured work time and fails every failEvery-th call.
func (w *worker) simulate(ctx context.Context, call int) (time.Duration, error) {
	n := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		p := w.peak.Load()
		if n <= p || w.peak.CompareAndSwap(p, n) {
			break
		}
	}

	start := time.Now()
	if w.work > 0 {
		time.Sleep(w.work)
	}
	if w.failEvery > 0 && call%w.failEvery == 0 {
		return time.Since(start), fmt.Errorf("call %d: %w", call, ErrSimulated)
	}
	return time.Since(start), nil
}

// Run submits cfg.Calls calls through d and waits for all of them. It returns
// early with ctx.Err() if ctx ends; calls already submitted keep running.
func Run(ctx context.Context, d *awaitable.Decorator, cfg config.BenchConfig, logger core.Logger) (Result, error) {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	w := &worker{work: cfg.Work, failEvery: cfg.FailEvery}
	call := awaitable.Wrap1(d, w.simulate)

	res := Result{
		RunID:    uuid.NewString(),
		Function: call.Name(),
		Calls:    cfg.Calls,
	}
	logger.Info("bench started",
		core.F("run", res.RunID),
		core.F("pool", d.Pool().ID()),
		core.F("calls", cfg.Calls),
		core.F("rate", cfg.Rate),
	)

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	start := time.Now()
	futures := make([]core.Pending, 0, cfg.Calls)
	for i := 1; i <= cfg.Calls; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return res, err
			}
		}
		futures = append(futures, call.Call(ctx, i))
	}

	for f := range core.AsCompleted(ctx, futures...) {
		switch err := f.Err(); {
		case err == nil:
			res.OK++
		case errors.Is(err, core.ErrCancelled):
			res.Cancelled++
		default:
			res.Failed++
			logger.Debug("call failed", core.F("run", res.RunID), core.F("error", err))
		}
	}
	res.Elapsed = time.Since(start)
	res.PeakConcurrency = int(w.peak.Load())

	if err := ctx.Err(); err != nil {
		return res, err
	}
	logger.Info("bench finished",
		core.F("run", res.RunID),
		core.F("ok", res.OK),
		core.F("failed", res.Failed),
		core.F("cancelled", res.Cancelled),
		core.F("elapsed", res.Elapsed),
	)
	return res, nil
}
