package core

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID        string
	Workers   int
	Queued    int
	Active    int
	Completed int64
	Failed    int64
	Rejected  int64
	Discarded int64
	Running   bool
	Broken    bool
}

// StatsFromScheduler fills the counters of a PoolStats from s.
func StatsFromScheduler(s *TaskScheduler) PoolStats {
	return PoolStats{
		ID:        s.Name(),
		Workers:   s.WorkerCount(),
		Queued:    s.QueuedTaskCount(),
		Active:    s.ActiveTaskCount(),
		Completed: s.CompletedTaskCount(),
		Failed:    s.FailedTaskCount(),
		Rejected:  s.RejectedTaskCount(),
		Discarded: s.DiscardedTaskCount(),
		Broken:    s.BrokenErr() != nil,
	}
}
