package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const gracefulPollInterval = 10 * time.Millisecond

// TaskScheduler is the FIFO work source shared by the workers of one pool.
// It owns the queue, the wake-up signal, the pool counters and the
// shutdown/broken state. Every item accepted by PostInternal is eventually
// either handed out by GetWork or discarded.
type TaskScheduler struct {
	name        string
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued    atomic.Int32 // Waiting in queue
	metricActive    atomic.Int32 // Executing in Worker
	metricCompleted atomic.Int64
	metricFailed    atomic.Int64
	metricRejected  atomic.Int64
	metricDiscarded atomic.Int64

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle. stateMu serializes the accept check in PostInternal against
	// the drain in Shutdown/Break so no item can slip in after a drain.
	stateMu      sync.RWMutex
	shuttingDown atomic.Bool
	brokenErr    error
}

func NewFIFOTaskScheduler(name string, workerCount int) *TaskScheduler {
	return NewFIFOTaskSchedulerWithConfig(name, workerCount, DefaultTaskSchedulerConfig())
}

func NewFIFOTaskSchedulerWithConfig(name string, workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	s := &TaskScheduler{
		name:        name,
		signal:      make(chan struct{}, max(workerCount*2, 1)),
		workerCount: workerCount,
		queue:       NewFIFOTaskQueue(),
	}

	// Apply config
	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
	}

	// Use defaults if not provided
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// PostInternal queues item and wakes one worker. It never waits for the item
// to run.
func (s *TaskScheduler) PostInternal(item TaskItem) error {
	s.stateMu.RLock()
	if err := s.acceptErrLocked(); err != nil {
		reason := "shutting down"
		if s.brokenErr != nil {
			reason = "broken"
		}
		s.stateMu.RUnlock()
		s.metricRejected.Add(1)
		s.rejectedTaskHandler.HandleRejectedTask(s.name, reason)
		s.metrics.RecordTaskRejected(s.name, reason)
		return err
	}
	s.queue.Push(item)
	depth := s.metricQueued.Add(1)
	s.stateMu.RUnlock()

	s.metrics.RecordQueueDepth(s.name, int(depth))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
		// This is not an error, just a optimization hint
	}
	return nil
}

func (s *TaskScheduler) acceptErrLocked() error {
	if s.brokenErr != nil {
		return s.brokenErr
	}
	if s.shuttingDown.Load() {
		return ErrPoolShutdown
	}
	return nil
}

// GetWork blocks until an item is available or stopCh is closed. The returned
// item counts as active until the worker calls OnTaskEnd.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (TaskItem, bool) {
	for {
		if item, ok := s.queue.Pop(); ok {
			// Active first, so IsIdle never sees the item in neither counter
			s.metricActive.Add(1)
			depth := s.metricQueued.Add(-1)
			s.metrics.RecordQueueDepth(s.name, int(depth))
			return item, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return TaskItem{}, false
		}
	}
}

// Shutdown stops accepting work and discards everything still queued with
// ErrCancelled. It returns the number of discarded items.
func (s *TaskScheduler) Shutdown() int {
	s.stateMu.Lock()
	s.shuttingDown.Store(true)
	items := s.queue.Drain()
	s.metricQueued.Add(-int32(len(items)))
	s.stateMu.Unlock()

	s.discardAll(items, ErrCancelled)
	return len(items)
}

// ShutdownGraceful stops accepting work and waits for queued and active tasks
// to complete. On timeout whatever is still queued is discarded and an error
// is returned.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	// Under the write lock: a PostInternal past its accept check has pushed
	// and counted its item before polling starts.
	s.stateMu.Lock()
	s.shuttingDown.Store(true)
	s.stateMu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(gracefulPollInterval)
	defer ticker.Stop()

	for {
		if s.IsIdle() {
			return nil
		}
		select {
		case <-deadline.C:
			n := s.Shutdown()
			return fmt.Errorf("shutdown graceful timeout after %v, %d queued tasks cancelled", timeout, n)
		case <-ticker.C:
		}
	}
}

// Break marks the scheduler broken: cause is returned to every later
// PostInternal and every queued item is discarded with it.
func (s *TaskScheduler) Break(cause error) {
	s.stateMu.Lock()
	if s.brokenErr != nil {
		s.stateMu.Unlock()
		return
	}
	s.brokenErr = cause
	items := s.queue.Drain()
	s.metricQueued.Add(-int32(len(items)))
	s.stateMu.Unlock()

	s.discardAll(items, cause)
}

func (s *TaskScheduler) discardAll(items []TaskItem, err error) {
	for _, item := range items {
		s.metricDiscarded.Add(1)
		item.discard(err)
	}
}

// BrokenErr returns the error passed to Break, or nil.
func (s *TaskScheduler) BrokenErr() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.brokenErr
}

// IsShuttingDown reports whether Shutdown or ShutdownGraceful has been called.
func (s *TaskScheduler) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// IsIdle reports whether nothing is queued or running.
func (s *TaskScheduler) IsIdle() bool {
	return s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0
}

// Metrics
func (s *TaskScheduler) Name() string              { return s.name }
func (s *TaskScheduler) WorkerCount() int          { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int      { return int(s.metricQueued.Load()) }
func (s *TaskScheduler) ActiveTaskCount() int      { return int(s.metricActive.Load()) }
func (s *TaskScheduler) CompletedTaskCount() int64 { return s.metricCompleted.Load() }
func (s *TaskScheduler) FailedTaskCount() int64    { return s.metricFailed.Load() }
func (s *TaskScheduler) RejectedTaskCount() int64  { return s.metricRejected.Load() }
func (s *TaskScheduler) DiscardedTaskCount() int64 { return s.metricDiscarded.Load() }

// OnTaskEnd records the end of a task that ran for d. err is the task's
// reported outcome; ErrTaskSkipped counts the item as discarded and records
// no duration.
func (s *TaskScheduler) OnTaskEnd(name string, d time.Duration, err error) {
	// Active last, so an idle scheduler has finished its bookkeeping
	defer s.metricActive.Add(-1)
	if errors.Is(err, ErrTaskSkipped) {
		s.metricDiscarded.Add(1)
		return
	}
	s.metricCompleted.Add(1)
	if err != nil {
		s.metricFailed.Add(1)
	}
	s.metrics.RecordTaskDuration(s.name, name, d)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
