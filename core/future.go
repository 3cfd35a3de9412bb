package core

import (
	"context"
	"errors"
	"runtime/debug"
	"runtime/pprof"
	"sync"
)

// =============================================================================
// Future: Pending result of a submitted task
// =============================================================================

type futureState int

const (
	statePending futureState = iota
	stateRunning
	stateFinished
	stateCancelled
)

func (s futureState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRunning:
		return "running"
	case stateFinished:
		return "finished"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Future is the eventual outcome of a task submitted with Submit.
//
// A Future moves from pending to running to finished, or from pending to
// cancelled. It is resolved exactly once; Done is closed at that moment and
// the value and error never change afterwards.
type Future[T any] struct {
	id     TaskID
	name   string
	logger Logger

	mu        sync.Mutex
	state     futureState
	value     T
	err       error
	callbacks []func(*Future[T])
	done      chan struct{}
}

func newFuture[T any](id TaskID, name string) *Future[T] {
	return &Future[T]{
		id:   id,
		name: name,
		done: make(chan struct{}),
	}
}

// ID returns the id of the task behind this future.
func (f *Future[T]) ID() TaskID { return f.id }

// Name returns the name the task was submitted with.
func (f *Future[T]) Name() string { return f.name }

// Done returns a channel closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get waits for the result. If ctx ends first it returns ctx.Err() and the
// task keeps going; Get may be called again later.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	default:
		select {
		case <-f.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// IsDone reports whether the future is resolved (finished or cancelled).
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Running reports whether the task is executing right now.
func (f *Future[T]) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateRunning
}

// Cancelled reports whether the future was cancelled before it ran.
func (f *Future[T]) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateCancelled
}

// Err returns the error the future resolved with. It does not wait: a
// pending or running future reports nil.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Cancel cancels the task if it has not started. It returns true if the
// future is cancelled after the call. A running or finished task cannot be
// cancelled.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	switch f.state {
	case stateCancelled:
		f.mu.Unlock()
		return true
	case stateRunning, stateFinished:
		f.mu.Unlock()
		return false
	}
	f.state = stateCancelled
	f.err = ErrCancelled
	callbacks := f.settleLocked()
	f.mu.Unlock()

	f.runCallbacks(callbacks)
	return true
}

// OnDone registers cb to run once the future is resolved. Callbacks run in
// registration order on the goroutine that resolves the future, or right
// away on the caller's goroutine when the future is already resolved.
func (f *Future[T]) OnDone(cb func(*Future[T])) {
	f.mu.Lock()
	if f.state != stateFinished && f.state != stateCancelled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.runCallbacks([]func(*Future[T]){cb})
}

func (f *Future[T]) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.name != "" {
		return "future(" + f.name + ", " + f.state.String() + ")"
	}
	return "future(" + f.state.String() + ")"
}

// start moves a pending future to running. It fails when the future was
// cancelled while queued.
func (f *Future[T]) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != statePending {
		return false
	}
	f.state = stateRunning
	return true
}

func (f *Future[T]) resolve(value T, err error) {
	f.mu.Lock()
	if f.state == stateFinished || f.state == stateCancelled {
		f.mu.Unlock()
		return
	}
	f.state = stateFinished
	f.value = value
	f.err = err
	callbacks := f.settleLocked()
	f.mu.Unlock()

	f.runCallbacks(callbacks)
}

// fail resolves a future that never ran. ErrCancelled marks it cancelled.
func (f *Future[T]) fail(err error) {
	if errors.Is(err, ErrCancelled) {
		f.Cancel()
		return
	}
	var zero T
	f.resolve(zero, err)
}

func (f *Future[T]) settleLocked() []func(*Future[T]) {
	close(f.done)
	callbacks := f.callbacks
	f.callbacks = nil
	return callbacks
}

func (f *Future[T]) runCallbacks(callbacks []func(*Future[T])) {
	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger := f.logger
					if logger == nil {
						logger = NewDefaultLogger()
					}
					logger.Error("future callback panicked",
						F("task", f.id),
						F("name", f.name),
						F("panic", r),
					)
				}
			}()
			cb(f)
		}()
	}
}

// =============================================================================
// Submit: Run a TaskWithResult on an Executor
// =============================================================================

// Submit posts fn to ex and returns its Future without waiting for it.
func Submit[T any](ex Executor, ctx context.Context, fn TaskWithResult[T]) *Future[T] {
	return SubmitNamed(ex, ctx, "", fn)
}

// SubmitNamed is Submit with a task name used in metrics and logs.
//
// fn receives ctx without its cancellation: values set by the caller are
// visible, but cancelling ctx after the call does not reach the task. The
// worker name and executor are added to it.
//
// If ex refuses the task the returned future is already resolved with the
// refusal error (ErrPoolShutdown, ErrBrokenPool).
//
// Panicking OnDone callbacks are logged to ex's Logger when ex is a
// LoggerSource.
func SubmitNamed[T any](ex Executor, ctx context.Context, name string, fn TaskWithResult[T]) *Future[T] {
	f := newFuture[T](nextTaskID(), name)
	if src, ok := ex.(LoggerSource); ok {
		f.logger = src.Logger()
	}
	callCtx := context.WithoutCancel(ctx)

	item := TaskItem{
		ID:   f.id,
		Name: name,
		Task: func(workerCtx context.Context) {
			if !f.start() {
				return
			}
			value, err := runRecovered(taskContext(callCtx, workerCtx), fn)
			f.resolve(value, err)
		},
		Discard: f.fail,
		Result: func() error {
			// Cancel only succeeds while pending, so a cancelled future never ran
			if f.Cancelled() {
				return ErrTaskSkipped
			}
			return f.Err()
		},
	}

	if err := ex.PostInternal(item); err != nil {
		f.fail(err)
	}
	return f
}

// NewResolvedFuture returns a future that is already finished with value and err.
func NewResolvedFuture[T any](value T, err error) *Future[T] {
	f := newFuture[T](nextTaskID(), "")
	f.resolve(value, err)
	return f
}

// taskContext layers what the worker knows (executor, worker name, profiler
// labels) over the caller's context.
func taskContext(callCtx, workerCtx context.Context) context.Context {
	ctx := callCtx
	if ex := GetCurrentExecutor(workerCtx); ex != nil {
		ctx = WithExecutor(ctx, ex)
	}
	if worker := GetWorkerName(workerCtx); worker != "" {
		ctx = WithWorkerName(ctx, worker)
	}
	var labels []string
	pprof.ForLabels(workerCtx, func(key, value string) bool {
		labels = append(labels, key, value)
		return true
	})
	if len(labels) > 0 {
		ctx = pprof.WithLabels(ctx, pprof.Labels(labels...))
	}
	return ctx
}

func runRecovered[T any](ctx context.Context, fn TaskWithResult[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
