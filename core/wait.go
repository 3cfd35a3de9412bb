package core

import (
	"context"
	"errors"
	"reflect"

	"golang.org/x/sync/errgroup"
)

// Pending is the type-erased view of a Future used by the wait helpers.
type Pending interface {
	Done() <-chan struct{}
	Err() error
	Cancel() bool
}

var (
	_ Pending = (*Future[int])(nil)
	_ Pending = (*Future[struct{}])(nil)
)

// WaitMode selects when Wait returns.
type WaitMode int

const (
	// AllCompleted returns when every future is resolved.
	AllCompleted WaitMode = iota
	// FirstCompleted returns when any future is resolved.
	FirstCompleted
	// FirstException returns when any future fails, or when all are resolved.
	FirstException
)

func (m WaitMode) String() string {
	switch m {
	case AllCompleted:
		return "all_completed"
	case FirstCompleted:
		return "first_completed"
	case FirstException:
		return "first_exception"
	default:
		return "unknown"
	}
}

// WaitAll waits for every future and returns the first error among them
// in completion order. It returns ctx.Err() if ctx ends first; the futures
// are left running.
func WaitAll(ctx context.Context, fs ...Pending) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fs {
		g.Go(func() error {
			select {
			case <-f.Done():
				return f.Err()
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// Wait blocks according to mode and partitions fs into resolved and
// unresolved futures. Order within each slice follows fs. err is ctx.Err()
// when ctx ended before the condition was met.
func Wait(ctx context.Context, mode WaitMode, fs ...Pending) (done, notDone []Pending, err error) {
	remaining := len(fs)
	cases := make([]reflect.SelectCase, 0, len(fs)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, f := range fs {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(f.Done())})
	}

	resolved := make([]bool, len(fs))
	for i, f := range fs {
		if isResolved(f) {
			resolved[i] = true
			remaining--
			cases[i+1].Chan = reflect.Value{}
		}
	}

	for !waitSatisfied(mode, fs, resolved, remaining) {
		chosen, _, _ := reflect.Select(cases)
		if chosen == 0 {
			err = ctx.Err()
			break
		}
		resolved[chosen-1] = true
		remaining--
		// A zero Value channel is never selected again.
		cases[chosen].Chan = reflect.Value{}
	}

	for i, f := range fs {
		if resolved[i] {
			done = append(done, f)
		} else {
			notDone = append(notDone, f)
		}
	}
	return done, notDone, err
}

func waitSatisfied(mode WaitMode, fs []Pending, resolved []bool, remaining int) bool {
	if remaining == 0 {
		return true
	}
	switch mode {
	case FirstCompleted:
		return remaining < len(fs)
	case FirstException:
		for i, f := range fs {
			if resolved[i] && f.Err() != nil && !errors.Is(f.Err(), ErrCancelled) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isResolved(f Pending) bool {
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// AsCompleted yields each future once it is resolved, in completion order.
// The channel is closed after the last future or when ctx ends.
func AsCompleted(ctx context.Context, fs ...Pending) <-chan Pending {
	out := make(chan Pending, len(fs))
	go func() {
		defer close(out)
		pending := append([]Pending(nil), fs...)
		for len(pending) > 0 {
			done, rest, err := Wait(ctx, FirstCompleted, pending...)
			for _, f := range done {
				out <- f
			}
			if err != nil {
				return
			}
			pending = rest
		}
	}()
	return out
}
