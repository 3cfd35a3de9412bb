package awaitable

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/Swind/go-awaitable/core"
	"github.com/google/uuid"
)

// ErrInvalidWorkers is returned for a negative worker count.
var ErrInvalidWorkers = errors.New("workers must be greater than 0")

// maxDefaultWorkers caps DefaultWorkerCount.
const maxDefaultWorkers = 32

// DefaultWorkerCount is the worker count used when PoolConfig.Workers is 0:
// min(32, NumCPU+4). IO-bound functions are the common case, so the pool is
// sized above the CPU count.
func DefaultWorkerCount() int {
	return min(maxDefaultWorkers, runtime.NumCPU()+4)
}

// PoolConfig configures a GoroutineThreadPool.
type PoolConfig struct {
	// ID names the pool in stats, metrics and logs. Empty means "awaitable-<uuid>".
	ID string

	// Workers is the number of worker goroutines. 0 means DefaultWorkerCount().
	Workers int

	// NamePrefix prefixes worker names ("<prefix>_<n>"). Empty means ID.
	NamePrefix string

	// Initializer runs once on every worker before it takes work. If it
	// fails the pool breaks: queued and later tasks fail with ErrBrokenPool.
	Initializer func(ctx context.Context, worker string) error

	// Scheduler configures panic, metrics and rejection handling.
	Scheduler *core.TaskSchedulerConfig

	// Logger receives lifecycle logs. Nil means core.NewDefaultLogger().
	Logger core.Logger
}

func (c PoolConfig) withDefaults() (PoolConfig, error) {
	if c.Workers < 0 {
		return c, fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkerCount()
	}
	if c.ID == "" {
		c.ID = "awaitable-" + uuid.NewString()
	}
	if c.NamePrefix == "" {
		c.NamePrefix = c.ID
	}
	if c.Scheduler == nil {
		c.Scheduler = core.DefaultTaskSchedulerConfig()
	}
	if c.Logger == nil {
		c.Logger = core.NewDefaultLogger()
	}
	return c, nil
}

// GoroutineThreadPool manages a set of worker goroutines
// Responsible for pulling tasks from the scheduler and executing them
type GoroutineThreadPool struct {
	id          string
	workers     int
	namePrefix  string
	initializer func(ctx context.Context, worker string) error
	logger      core.Logger
	scheduler   *core.TaskScheduler
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	runningMu   sync.RWMutex
}

var (
	_ core.Executor     = (*GoroutineThreadPool)(nil)
	_ core.LoggerSource = (*GoroutineThreadPool)(nil)
)

// NewGoroutineThreadPool creates a new GoroutineThreadPool with default handlers.
// The pool accepts tasks right away; they run once Start is called.
func NewGoroutineThreadPool(id string, workers int) (*GoroutineThreadPool, error) {
	if workers == 0 {
		return nil, fmt.Errorf("%w: got 0", ErrInvalidWorkers)
	}
	return NewGoroutineThreadPoolWithConfig(PoolConfig{ID: id, Workers: workers})
}

// NewGoroutineThreadPoolWithConfig creates a new GoroutineThreadPool from cfg.
func NewGoroutineThreadPoolWithConfig(cfg PoolConfig) (*GoroutineThreadPool, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &GoroutineThreadPool{
		id:          cfg.ID,
		workers:     cfg.Workers,
		namePrefix:  cfg.NamePrefix,
		initializer: cfg.Initializer,
		logger:      cfg.Logger,
		scheduler:   core.NewFIFOTaskSchedulerWithConfig(cfg.ID, cfg.Workers, cfg.Scheduler),
	}, nil
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(core.WithExecutor(ctx, tg))
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(tg.workerName(i), tg.ctx)
	}
	tg.logger.Debug("pool started", core.F("pool", tg.id), core.F("workers", tg.workers))
}

// Stop stops the thread pool. Queued tasks are discarded (their futures are
// cancelled); Stop waits for running tasks to return.
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks
	// even if pool was never started
	discarded := tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
	tg.logger.Debug("pool stopped", core.F("pool", tg.id), core.F("discarded", discarded))
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete; the tasks still
// queued at that point are discarded.
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		// Nothing will ever drain the queue
		tg.runningMu.Unlock()
		tg.scheduler.Shutdown()
		return nil
	}
	tg.runningMu.Unlock()

	// First, gracefully shutdown the scheduler (waits for queues to drain)
	err := tg.scheduler.ShutdownGraceful(timeout)

	// Drained or timed out, cancel workers either way
	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	if err != nil {
		tg.logger.Warn("pool stopped before draining", core.F("pool", tg.id), core.F("error", err))
		return err
	}
	tg.logger.Debug("pool drained and stopped", core.F("pool", tg.id))
	return nil
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// IsBroken reports whether a worker initializer failed.
func (tg *GoroutineThreadPool) IsBroken() bool {
	return tg.scheduler.BrokenErr() != nil
}

func (tg *GoroutineThreadPool) workerName(i int) string {
	return tg.namePrefix + "_" + strconv.Itoa(i)
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(name string, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()
	ctx = core.WithWorkerName(ctx, name)

	if tg.initializer != nil {
		if err := tg.initializer(ctx, name); err != nil {
			tg.logger.Error("worker initializer failed",
				core.F("pool", tg.id), core.F("worker", name), core.F("error", err))
			tg.scheduler.Break(&core.BrokenPoolError{Worker: name, Cause: err})
			return
		}
	}

	labels := pprof.Labels("pool", tg.id, "worker", name)
	for {
		// Pull tasks from the scheduler
		item, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// Scheduler closed or context canceled
			return
		}
		pprof.Do(ctx, labels, func(ctx context.Context) {
			tg.runTask(ctx, name, item)
		})
	}
}

func (tg *GoroutineThreadPool) runTask(ctx context.Context, worker string, item core.TaskItem) {
	start := time.Now()
	var outcome error

	// Execute task and capture panic
	defer func() {
		if r := recover(); r != nil {
			outcome = &core.PanicError{Value: r, Stack: debug.Stack()}
		}
		var pe *core.PanicError
		if errors.As(outcome, &pe) {
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, worker, pe.Value, pe.Stack)
			tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, item.Name, pe.Value)
		}
		tg.scheduler.OnTaskEnd(item.Name, time.Since(start), outcome)
	}()

	item.Task(ctx)
	if item.Result != nil {
		outcome = item.Result()
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// Stats returns current observability data for this pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	stats := core.StatsFromScheduler(tg.scheduler)
	stats.Running = tg.IsRunning()
	return stats
}

// Logger returns the logger the pool was configured with.
func (tg *GoroutineThreadPool) Logger() core.Logger {
	return tg.logger
}

// GetScheduler returns the scheduler backing this pool.
func (tg *GoroutineThreadPool) GetScheduler() *core.TaskScheduler {
	return tg.scheduler
}

// PostInternal queues item; see core.Executor.
func (tg *GoroutineThreadPool) PostInternal(item core.TaskItem) error {
	return tg.scheduler.PostInternal(item)
}
