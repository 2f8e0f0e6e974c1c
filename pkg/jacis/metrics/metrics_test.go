package metrics

import (
	"testing"
	"time"
)

func TestTimingHistogramBuckets(t *testing.T) {
	h := NewTimingHistogram(10)
	h.Record(500 * time.Microsecond)
	h.Record(5 * time.Millisecond)
	h.Record(50 * time.Millisecond)
	h.Record(500 * time.Millisecond)
	h.Record(2 * time.Second)

	if h.bucket0_1ms != 1 || h.bucket1_10ms != 1 || h.bucket10_100ms != 1 ||
		h.bucket100_1000ms != 1 || h.bucket1000ms != 1 {
		t.Fatalf("unexpected bucket distribution: %+v", h)
	}
}

func TestTimingHistogramPercentile(t *testing.T) {
	h := NewTimingHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}
	p50 := h.Percentile(50)
	if p50 < 40*time.Millisecond || p50 > 60*time.Millisecond {
		t.Fatalf("expected p50 near 50ms, got %v", p50)
	}
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	c.recordPrepare(true)
	c.recordPrepare(false)
	c.recordCommit(true, 10*time.Millisecond)
	c.recordRollback()

	snap := c.Snapshot()
	if snap.PrepareTotal != 2 || snap.PrepareFailedTotal != 1 {
		t.Fatalf("unexpected prepare counters: %+v", snap)
	}
	if snap.CommitTotal != 1 || snap.CommitFailedTotal != 0 {
		t.Fatalf("unexpected commit counters: %+v", snap)
	}
	if snap.RollbackTotal != 1 {
		t.Fatalf("unexpected rollback counter: %+v", snap)
	}
	if snap.UptimeSeconds < 0 {
		t.Fatalf("expected non-negative uptime, got %v", snap.UptimeSeconds)
	}
}
