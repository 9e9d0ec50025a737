package metrics

import (
	"sync"
	"time"
)

// Collector tracks service metrics for Prometheus exposition.
// This implementation uses manual metric tracking without external
// dependencies; for larger deployments consider prometheus/client_golang.
type Collector struct {
	mu sync.RWMutex

	// Request metrics
	totalRequests      map[string]int64 // by endpoint
	totalRequestsDur   map[string]int64 // total duration in ms
	requestErrors      map[string]int64 // by endpoint
	requestsInProgress map[string]int64 // current in-flight requests

	// Streaming metrics
	streamsStarted   int64
	streamsCompleted int64
	streamsFailed    int64
	fragmentsEmitted int64
	fallbacksServed  int64

	// Rate limit metrics
	rateLimitHits int64

	startTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		totalRequests:      make(map[string]int64),
		totalRequestsDur:   make(map[string]int64),
		requestErrors:      make(map[string]int64),
		requestsInProgress: make(map[string]int64),
		startTime:          time.Now(),
	}
}

// RecordRequest records a completed request to an endpoint.
func (c *Collector) RecordRequest(endpoint string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests[endpoint]++
	c.totalRequestsDur[endpoint] += duration.Milliseconds()
}

// RecordError records a request error for an endpoint.
func (c *Collector) RecordError(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestErrors[endpoint]++
}

// RecordRequestStart increments in-progress requests.
func (c *Collector) RecordRequestStart(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsInProgress[endpoint]++
}

// RecordRequestEnd decrements in-progress requests.
func (c *Collector) RecordRequestEnd(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsInProgress[endpoint]--
}

// RecordStreamStart counts an opened relay stream.
func (c *Collector) RecordStreamStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamsStarted++
}

// RecordStreamEnd counts a closed relay stream and its emitted fragments.
func (c *Collector) RecordStreamEnd(fragments int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragmentsEmitted += int64(fragments)
	if failed {
		c.streamsFailed++
	} else {
		c.streamsCompleted++
	}
}

// RecordFallback counts a reply served from the canned producer after the
// upstream was unreachable.
func (c *Collector) RecordFallback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacksServed++
}

// RecordRateLimitHit records a rate limit rejection.
func (c *Collector) RecordRateLimitHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitHits++
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Uptime             int64
	TotalRequests      map[string]int64
	TotalRequestsDur   map[string]int64
	RequestErrors      map[string]int64
	RequestsInProgress map[string]int64
	StreamsStarted     int64
	StreamsCompleted   int64
	StreamsFailed      int64
	FragmentsEmitted   int64
	FallbacksServed    int64
	RateLimitHits      int64
}

// GetSnapshot returns a snapshot of current metrics.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Uptime:             int64(time.Since(c.startTime).Seconds()),
		TotalRequests:      copyMap(c.totalRequests),
		TotalRequestsDur:   copyMap(c.totalRequestsDur),
		RequestErrors:      copyMap(c.requestErrors),
		RequestsInProgress: copyMap(c.requestsInProgress),
		StreamsStarted:     c.streamsStarted,
		StreamsCompleted:   c.streamsCompleted,
		StreamsFailed:      c.streamsFailed,
		FragmentsEmitted:   c.fragmentsEmitted,
		FallbacksServed:    c.fallbacksServed,
		RateLimitHits:      c.rateLimitHits,
	}
}

func copyMap(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
