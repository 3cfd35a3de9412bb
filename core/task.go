package core

import (
	"context"
	"sync/atomic"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskWithResult is a function that produces a value or an error.
// It is what Submit runs on a pool and what a Future resolves to.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// TaskID identifies a submitted task within the process.
type TaskID uint64

var taskIDCounter atomic.Uint64

func nextTaskID() TaskID {
	return TaskID(taskIDCounter.Add(1))
}

// =============================================================================
// TaskItem: What an Executor queues
// =============================================================================

// TaskItem is a queued task together with what the pool needs to know about it.
type TaskItem struct {
	ID   TaskID
	Name string

	// Task runs the work. It is called at most once.
	Task Task

	// Discard is called instead of Task when the item is dropped from the
	// queue without running (shutdown, broken pool). err says why.
	Discard func(err error)

	// Result reports the outcome after Task returned. Optional; pools use it
	// to count failures and to report panics the task recovered itself.
	Result func() error
}

// discard calls Discard if set.
func (it TaskItem) discard(err error) {
	if it.Discard != nil {
		it.Discard(err)
	}
}

// result calls Result if set.
func (it TaskItem) result() error {
	if it.Result != nil {
		return it.Result()
	}
	return nil
}

// =============================================================================
// Executor: Define task submission interface
// =============================================================================

// Executor accepts tasks for asynchronous execution on background workers.
//
// PostInternal must not block on the task's execution. It returns
// ErrPoolShutdown after shutdown and ErrBrokenPool when the pool can no
// longer run tasks; in both cases the item is not queued.
type Executor interface {
	ID() string
	PostInternal(item TaskItem) error
}

// LoggerSource is implemented by executors that carry their own Logger.
type LoggerSource interface {
	Logger() Logger
}

// =============================================================================
// Context Helper
// =============================================================================
type executorKeyType struct{}

var executorKey executorKeyType

type workerKeyType struct{}

var workerKey workerKeyType

// WithExecutor returns a ctx that carries ex. Pools attach themselves to the
// context they hand to each task.
func WithExecutor(ctx context.Context, ex Executor) context.Context {
	return context.WithValue(ctx, executorKey, ex)
}

// GetCurrentExecutor retrieves the Executor running the current task, or nil.
func GetCurrentExecutor(ctx context.Context) Executor {
	if v := ctx.Value(executorKey); v != nil {
		return v.(Executor)
	}
	return nil
}

// WithWorkerName returns a ctx that carries the name of the worker running a task.
func WithWorkerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey, name)
}

// GetWorkerName returns the worker name stored by WithWorkerName, or "".
func GetWorkerName(ctx context.Context) string {
	if v, ok := ctx.Value(workerKey).(string); ok {
		return v
	}
	return ""
}
