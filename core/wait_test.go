package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepFor(e Executor, d time.Duration, v int, err error) *Future[int] {
	return Submit(e, context.Background(), func(ctx context.Context) (int, error) {
		time.Sleep(d)
		return v, err
	})
}

// TestWaitAll tests waiting on a batch of futures
// Main test items:
// 1. Returns nil when every future succeeds
// 2. Returns a failing future's error
// 3. Returns ctx.Err() when ctx ends first
func TestWaitAll(t *testing.T) {
	e := newTestExecutor(t, 4)

	t.Run("success", func(t *testing.T) {
		a := sleepFor(e, 5*time.Millisecond, 1, nil)
		b := sleepFor(e, 10*time.Millisecond, 2, nil)
		require.NoError(t, WaitAll(context.Background(), a, b))
		assert.True(t, a.IsDone())
		assert.True(t, b.IsDone())
	})

	t.Run("error", func(t *testing.T) {
		errBoom := errors.New("boom")
		a := sleepFor(e, 5*time.Millisecond, 1, nil)
		b := sleepFor(e, time.Millisecond, 0, errBoom)
		assert.ErrorIs(t, WaitAll(context.Background(), a, b), errBoom)
	})

	t.Run("context", func(t *testing.T) {
		g := newGate()
		defer g.open()
		f := Submit(e, context.Background(), func(ctx context.Context) (int, error) {
			g.wait()
			return 0, nil
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, WaitAll(ctx, f), context.DeadlineExceeded)
		assert.False(t, f.IsDone())
	})
}

// TestWait_Modes tests the three wait modes
// Main test items:
// 1. FirstCompleted returns once one future is resolved
// 2. FirstException returns at the first failure
// 3. FirstException does not count a cancellation as a failure
// 4. AllCompleted returns everything in done
func TestWait_Modes(t *testing.T) {
	e := newTestExecutor(t, 4)
	errBoom := errors.New("boom")

	t.Run("first_completed", func(t *testing.T) {
		g := newGate()
		defer g.open()
		slow := Submit(e, context.Background(), func(ctx context.Context) (int, error) {
			g.wait()
			return 0, nil
		})
		fast := sleepFor(e, time.Millisecond, 1, nil)

		done, notDone, err := Wait(context.Background(), FirstCompleted, slow, fast)

		require.NoError(t, err)
		assert.Equal(t, []Pending{fast}, done)
		assert.Equal(t, []Pending{slow}, notDone)
	})

	t.Run("first_exception", func(t *testing.T) {
		g := newGate()
		defer g.open()
		slow := Submit(e, context.Background(), func(ctx context.Context) (int, error) {
			g.wait()
			return 0, nil
		})
		ok := sleepFor(e, time.Millisecond, 1, nil)
		bad := sleepFor(e, 10*time.Millisecond, 0, errBoom)

		done, notDone, err := Wait(context.Background(), FirstException, slow, ok, bad)

		require.NoError(t, err)
		assert.Contains(t, done, Pending(bad))
		assert.Contains(t, done, Pending(ok))
		assert.Equal(t, []Pending{slow}, notDone)
	})

	t.Run("first_exception_ignores_cancel", func(t *testing.T) {
		resolved := NewResolvedFuture(0, nil)
		cancelled := newFuture[int](nextTaskID(), "never")
		cancelled.Cancel()
		ok := sleepFor(e, time.Millisecond, 1, nil)

		done, notDone, err := Wait(context.Background(), FirstException, resolved, cancelled, ok)

		require.NoError(t, err)
		assert.Len(t, done, 3)
		assert.Empty(t, notDone)
	})

	t.Run("all_completed", func(t *testing.T) {
		a := sleepFor(e, time.Millisecond, 1, nil)
		b := sleepFor(e, 5*time.Millisecond, 0, errBoom)

		done, notDone, err := Wait(context.Background(), AllCompleted, a, b)

		require.NoError(t, err)
		assert.Equal(t, []Pending{a, b}, done)
		assert.Empty(t, notDone)
	})

	t.Run("context", func(t *testing.T) {
		g := newGate()
		defer g.open()
		f := Submit(e, context.Background(), func(ctx context.Context) (int, error) {
			g.wait()
			return 0, nil
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		done, notDone, err := Wait(ctx, AllCompleted, f)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, done)
		assert.Equal(t, []Pending{f}, notDone)
	})
}

// TestAsCompleted tests completion-order iteration
// Main test items:
// 1. Futures are yielded in the order they finish
// 2. Every future is yielded exactly once and the channel closes
func TestAsCompleted(t *testing.T) {
	e := newTestExecutor(t, 3)

	slow := sleepFor(e, 40*time.Millisecond, 3, nil)
	mid := sleepFor(e, 20*time.Millisecond, 2, nil)
	fast := sleepFor(e, time.Millisecond, 1, nil)

	var got []int
	for p := range AsCompleted(context.Background(), slow, mid, fast) {
		v, err := p.(*Future[int]).Get(context.Background())
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestWaitMode_String(t *testing.T) {
	assert.Equal(t, "all_completed", AllCompleted.String())
	assert.Equal(t, "first_completed", FirstCompleted.String())
	assert.Equal(t, "first_exception", FirstException.String())
	assert.Equal(t, "unknown", WaitMode(99).String())
}
