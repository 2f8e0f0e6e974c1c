// Package metrics collects and exports real-time engine counters, grounded
// on the teacher's pkg/metrics.MetricsCollector/TimingHistogram shape, but
// re-keyed from query/insert/update/delete operation counts onto the
// transaction lifecycle (prepare/commit/rollback) this engine actually has.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimingHistogram buckets durations the same way the teacher's does:
// <1ms, 1-10ms, 10-100ms, 100ms-1s, >1s, plus a bounded ring of recent
// samples for percentile estimation.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recent           []time.Duration
	maxRecent        int
}

// NewTimingHistogram creates a histogram keeping up to maxRecent samples
// for percentile estimation.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{recent: make([]time.Duration, 0, maxRecent), maxRecent: maxRecent}
}

// Record adds one observation.
func (h *TimingHistogram) Record(d time.Duration) {
	switch {
	case d < time.Millisecond:
		atomic.AddUint64(&h.bucket0_1ms, 1)
	case d < 10*time.Millisecond:
		atomic.AddUint64(&h.bucket1_10ms, 1)
	case d < 100*time.Millisecond:
		atomic.AddUint64(&h.bucket10_100ms, 1)
	case d < time.Second:
		atomic.AddUint64(&h.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&h.bucket1000ms, 1)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.recent) >= h.maxRecent {
		h.recent = h.recent[1:]
	}
	h.recent = append(h.recent, d)
}

// Percentile returns an estimate of the p-th percentile (0 < p < 100) over
// the retained recent samples, using a naive sort-and-index; 0 if empty.
func (h *TimingHistogram) Percentile(p float64) time.Duration {
	h.mu.Lock()
	samples := append([]time.Duration(nil), h.recent...)
	h.mu.Unlock()
	if len(samples) == 0 {
		return 0
	}
	for i := 1; i < len(samples); i++ {
		for j := i; j > 0 && samples[j-1] > samples[j]; j-- {
			samples[j-1], samples[j] = samples[j], samples[j-1]
		}
	}
	idx := int(p / 100 * float64(len(samples)))
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return samples[idx]
}

// Collector tracks counts across every store a Container manages.
// Attach it to a Container via a TransactionListener (see Listener below)
// and read its counters at any time from another goroutine.
type Collector struct {
	prepareTotal        uint64
	prepareFailedTotal  uint64
	commitTotal         uint64
	commitFailedTotal   uint64
	rollbackTotal       uint64
	staleObjectTotal    uint64
	uniqueViolationTotal uint64
	vetoTotal           uint64

	commitTimings *TimingHistogram
	startTime     time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		commitTimings: NewTimingHistogram(1000),
		startTime:     time.Now(),
	}
}

// Uptime returns how long this collector has been running.
func (c *Collector) Uptime() time.Duration { return time.Since(c.startTime) }

func (c *Collector) recordPrepare(ok bool) {
	atomic.AddUint64(&c.prepareTotal, 1)
	if !ok {
		atomic.AddUint64(&c.prepareFailedTotal, 1)
	}
}

func (c *Collector) recordCommit(ok bool, d time.Duration) {
	atomic.AddUint64(&c.commitTotal, 1)
	if !ok {
		atomic.AddUint64(&c.commitFailedTotal, 1)
	}
	c.commitTimings.Record(d)
}

func (c *Collector) recordRollback() { atomic.AddUint64(&c.rollbackTotal, 1) }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	PrepareTotal         uint64
	PrepareFailedTotal   uint64
	CommitTotal          uint64
	CommitFailedTotal    uint64
	RollbackTotal        uint64
	StaleObjectTotal     uint64
	UniqueViolationTotal uint64
	VetoTotal            uint64
	UptimeSeconds        float64
}

// Snapshot reads every counter atomically (each individually; this is not
// a consistent multi-field snapshot, matching the teacher's own
// best-effort read style).
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		PrepareTotal:         atomic.LoadUint64(&c.prepareTotal),
		PrepareFailedTotal:   atomic.LoadUint64(&c.prepareFailedTotal),
		CommitTotal:          atomic.LoadUint64(&c.commitTotal),
		CommitFailedTotal:    atomic.LoadUint64(&c.commitFailedTotal),
		RollbackTotal:        atomic.LoadUint64(&c.rollbackTotal),
		StaleObjectTotal:     atomic.LoadUint64(&c.staleObjectTotal),
		UniqueViolationTotal: atomic.LoadUint64(&c.uniqueViolationTotal),
		VetoTotal:            atomic.LoadUint64(&c.vetoTotal),
		UptimeSeconds:        c.Uptime().Seconds(),
	}
}
