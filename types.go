package awaitable

import "github.com/Swind/go-awaitable/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the awaitable package for most use cases.

// Future is the pending result of a call
type Future[T any] = core.Future[T]

// Executor is the interface a Decorator submits to
type Executor = core.Executor

// Pending is the type-erased view of a Future
type Pending = core.Pending

// PoolStats is a snapshot of a pool's counters
type PoolStats = core.PoolStats

// WaitMode selects when Wait returns
type WaitMode = core.WaitMode

// Wait modes
const (
	AllCompleted   = core.AllCompleted
	FirstCompleted = core.FirstCompleted
	FirstException = core.FirstException
)

// Errors surfaced through futures
var (
	ErrPoolShutdown = core.ErrPoolShutdown
	ErrBrokenPool   = core.ErrBrokenPool
	ErrCancelled    = core.ErrCancelled
	ErrPanic        = core.ErrPanic
)

// Wait helpers
var (
	WaitAll     = core.WaitAll
	Wait        = core.Wait
	AsCompleted = core.AsCompleted
)

// GetWorkerName returns the name of the worker running the current call
var GetWorkerName = core.GetWorkerName
