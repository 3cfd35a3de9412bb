package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// testExecutor runs a TaskScheduler with plain goroutine workers so the core
// package can be tested without the root pool.
type testExecutor struct {
	*TaskScheduler
	logger *recordingLogger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var (
	_ Executor     = (*testExecutor)(nil)
	_ LoggerSource = (*testExecutor)(nil)
)

func newTestExecutor(t *testing.T, workers int) *testExecutor {
	t.Helper()
	return newTestExecutorWithConfig(t, workers, DefaultTaskSchedulerConfig())
}

func newTestExecutorWithConfig(t *testing.T, workers int, cfg *TaskSchedulerConfig) *testExecutor {
	t.Helper()
	e := &testExecutor{
		TaskScheduler: NewFIFOTaskSchedulerWithConfig("test-pool", workers, cfg),
		logger:        &recordingLogger{},
		stopCh:        make(chan struct{}),
	}
	for i := range workers {
		e.wg.Add(1)
		go e.work(i)
	}
	t.Cleanup(e.stop)
	return e
}

func (e *testExecutor) ID() string { return e.Name() }

func (e *testExecutor) Logger() Logger { return e.logger }

func (e *testExecutor) work(i int) {
	defer e.wg.Done()
	ctx := WithWorkerName(WithExecutor(context.Background(), e), fmt.Sprintf("test-pool_%d", i))
	for {
		item, ok := e.GetWork(e.stopCh)
		if !ok {
			return
		}
		start := time.Now()
		item.Task(ctx)
		e.OnTaskEnd(item.Name, time.Since(start), item.result())
	}
}

func (e *testExecutor) stop() {
	select {
	case <-e.stopCh:
		return
	default:
	}
	e.Shutdown()
	close(e.stopCh)
	e.wg.Wait()
}

// rejectingExecutor refuses every item with err.
type rejectingExecutor struct {
	err error
}

func (r rejectingExecutor) ID() string                       { return "rejecting" }
func (r rejectingExecutor) PostInternal(item TaskItem) error { return r.err }

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields []Field
}

func (l *recordingLogger) add(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields ...Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...Field) { l.add("error", msg, fields) }

func (l *recordingLogger) Entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

// gate blocks tasks until it is opened.
type gate chan struct{}

func newGate() gate { return make(gate) }

func (g gate) wait() { <-g }
func (g gate) open() { close(g) }
