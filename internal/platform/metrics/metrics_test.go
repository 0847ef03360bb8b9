package metrics

import (
	"testing"
	"time"
)

func TestSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(502, 30*time.Millisecond)
	c.Record(429, 0)
	c.RecordUpstream(200, 40*time.Millisecond)
	c.RecordUpstream(0, 0)
	c.RecordCache(true)
	c.RecordCache(false)
	c.RecordCache(true)

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) || snap["errorsTotal"] != uint64(1) || snap["rateLimitedTotal"] != uint64(1) {
		t.Fatalf("unexpected request counters %v", snap)
	}
	if snap["upstreamCallsTotal"] != uint64(2) || snap["upstreamErrorsTotal"] != uint64(1) {
		t.Fatalf("unexpected upstream counters %v", snap)
	}
	if snap["upstreamAvgDurationMs"] != float64(20) {
		t.Fatalf("unexpected upstream average %v", snap["upstreamAvgDurationMs"])
	}
	if snap["cacheHitsTotal"] != uint64(2) || snap["cacheMissesTotal"] != uint64(1) {
		t.Fatalf("unexpected cache counters %v", snap)
	}
}
