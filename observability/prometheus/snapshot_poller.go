package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-awaitable/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueued    *prom.GaugeVec
	poolActive    *prom.GaugeVec
	poolWorkers   *prom.GaugeVec
	poolCompleted *prom.GaugeVec
	poolFailed    *prom.GaugeVec
	poolRejected  *prom.GaugeVec
	poolDiscarded *prom.GaugeVec
	poolRunning   *prom.GaugeVec
	poolBroken    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "awaitable"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"pool"})
	}

	p := &SnapshotPoller{
		interval:      interval,
		pools:         make(map[string]PoolSnapshotProvider),
		poolQueued:    gauge("pool_queued", "Queued tasks per pool."),
		poolActive:    gauge("pool_active", "Active tasks per pool."),
		poolWorkers:   gauge("pool_workers", "Worker count per pool."),
		poolCompleted: gauge("pool_completed", "Completed task count snapshot per pool."),
		poolFailed:    gauge("pool_failed", "Failed task count snapshot per pool."),
		poolRejected:  gauge("pool_rejected", "Submissions refused by the pool, per pool."),
		poolDiscarded: gauge("pool_discarded", "Tasks dropped from the queue without running, per pool."),
		poolRunning:   gauge("pool_running", "Pool running state (1=running, 0=stopped)."),
		poolBroken:    gauge("pool_broken", "Pool broken state (1=broken, 0=healthy)."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolCompleted,
		&p.poolFailed, &p.poolRejected, &p.poolDiscarded, &p.poolRunning, &p.poolBroken,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// RemovePool stops exporting the named pool and deletes its series.
func (p *SnapshotPoller) RemovePool(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	delete(p.pools, name)
	p.poolsMu.Unlock()

	for _, g := range []*prom.GaugeVec{
		p.poolQueued, p.poolActive, p.poolWorkers, p.poolCompleted,
		p.poolFailed, p.poolRejected, p.poolDiscarded, p.poolRunning, p.poolBroken,
	} {
		g.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports one snapshot of every registered pool.
func (p *SnapshotPoller) CollectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.poolFailed.WithLabelValues(name).Set(float64(stats.Failed))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.poolDiscarded.WithLabelValues(name).Set(float64(stats.Discarded))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.poolBroken.WithLabelValues(name).Set(boolGauge(stats.Broken))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
