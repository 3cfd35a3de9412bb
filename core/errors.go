package core

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolShutdown is returned when submitting to a pool that has been shut down.
	ErrPoolShutdown = errors.New("pool is shut down")

	// ErrBrokenPool is returned when a pool can no longer run tasks because a
	// worker failed to initialize.
	ErrBrokenPool = errors.New("pool is broken")

	// ErrCancelled resolves a future that was cancelled before it started running.
	ErrCancelled = errors.New("task cancelled")

	// ErrPanic is matched by every *PanicError.
	ErrPanic = errors.New("task panicked")

	// ErrTaskSkipped is reported by TaskItem.Result when the worker picked up
	// an item whose work had already been cancelled. The scheduler counts it
	// as discarded, not completed.
	ErrTaskSkipped = errors.New("task skipped")
)

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap lets errors.Is(err, ErrPanic) match.
func (e *PanicError) Unwrap() error {
	return ErrPanic
}

// BrokenPoolError records why a pool broke.
type BrokenPoolError struct {
	Worker string
	Cause  error
}

func (e *BrokenPoolError) Error() string {
	return fmt.Sprintf("pool is broken: worker %s failed to initialize: %v", e.Worker, e.Cause)
}

// Is reports ErrBrokenPool so callers can match without knowing the cause.
func (e *BrokenPoolError) Is(target error) bool {
	return target == ErrBrokenPool
}

func (e *BrokenPoolError) Unwrap() error {
	return e.Cause
}
