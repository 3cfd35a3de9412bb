// Package awaitable turns ordinary functions into functions that run on a
// background worker pool and hand back a Future.
//
// A Decorator binds one pool. Functions wrapped through it submit every call
// to that pool and return immediately:
//
//	d, err := awaitable.New(awaitable.FromConfig(awaitable.PoolConfig{Workers: 4}))
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//
//	fetch := awaitable.Wrap1(d, func(ctx context.Context, url string) (int, error) {
//		resp, err := http.Get(url)
//		if err != nil {
//			return 0, err
//		}
//		defer resp.Body.Close()
//		return resp.StatusCode, nil
//	})
//
//	f := fetch.Call(ctx, "https://example.com") // does not block
//	status, err := f.Get(ctx)                   // blocks until done
//
// # Pool sources
//
// A Decorator is built from exactly one of:
//
//   - DefaultPool(): a new pool sized by DefaultWorkerCount.
//   - FromConfig(cfg): a new pool built from cfg. Construction errors are
//     returned by New.
//   - FromPool(ex): an existing Executor. The Decorator never stops it, and
//     every function wrapped through it shares ex's workers.
//
// Pools a Decorator builds are owned by it. Release them with Close (cancel
// queued calls) or Shutdown (drain first). Nothing is released implicitly.
//
// The Async0..AsyncVariadic helpers are the shorthand for "default pool,
// wrap this one function"; they return the Decorator so the pool can still
// be closed.
//
// # Futures
//
// Future.Get returns the function's value and error unchanged. A panic in the
// function is returned as a *core.PanicError matching ErrPanic. A queued call
// can be cancelled with Future.Cancel; a running call cannot. Calls receive the
// caller's context values but not its cancellation.
package awaitable
