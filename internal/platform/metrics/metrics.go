package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	upstreamCalls      uint64
	upstreamErrors     uint64
	upstreamDurationMs uint64

	cacheHits   uint64
	cacheMisses uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordUpstream counts one call to the remote HR API. Status 0 means the
// request never got a response.
func (c *Collector) RecordUpstream(status int, duration time.Duration) {
	atomic.AddUint64(&c.upstreamCalls, 1)
	if status == 0 || status >= 500 {
		atomic.AddUint64(&c.upstreamErrors, 1)
	}
	atomic.AddUint64(&c.upstreamDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordCache(hit bool) {
	if hit {
		atomic.AddUint64(&c.cacheHits, 1)
		return
	}
	atomic.AddUint64(&c.cacheMisses, 1)
}

func average(totalMs, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalMs) / float64(count)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	upstream := atomic.LoadUint64(&c.upstreamCalls)
	upstreamMs := atomic.LoadUint64(&c.upstreamDurationMs)
	return map[string]any{
		"requestsTotal":         total,
		"errorsTotal":           atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal":      atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":         average(totalMs, total),
		"totalDurationMs":       totalMs,
		"upstreamCallsTotal":    upstream,
		"upstreamErrorsTotal":   atomic.LoadUint64(&c.upstreamErrors),
		"upstreamAvgDurationMs": average(upstreamMs, upstream),
		"cacheHitsTotal":        atomic.LoadUint64(&c.cacheHits),
		"cacheMissesTotal":      atomic.LoadUint64(&c.cacheMisses),
	}
}
