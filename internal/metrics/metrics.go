package metrics

import (
	"sort"
	"sync"
	"time"
)

// MetricsCollector tracks request counts, per-principal usage and a sliding
// window of recent latencies.
type MetricsCollector struct {
	totalRequests uint64
	totalErrors   uint64
	statusCounts  map[int]uint64
	clientUsage   map[string]uint64

	latencies  []time.Duration
	next       int
	maxSamples int
	mu         sync.RWMutex
}

func NewCollector(maxSamples int) *MetricsCollector {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &MetricsCollector{
		statusCounts: make(map[int]uint64),
		clientUsage:  make(map[string]uint64),
		latencies:    make([]time.Duration, 0, maxSamples),
		maxSamples:   maxSamples,
	}
}

// Record adds one finished request. client is the principal name, empty for
// unauthenticated requests.
func (c *MetricsCollector) Record(duration time.Duration, statusCode int, client string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	if statusCode >= 400 {
		c.totalErrors++
	}
	c.statusCounts[statusCode]++
	if client != "" {
		c.clientUsage[client]++
	}

	// ring buffer of the last maxSamples latencies
	if len(c.latencies) < c.maxSamples {
		c.latencies = append(c.latencies, duration)
		return
	}
	c.latencies[c.next] = duration
	c.next = (c.next + 1) % c.maxSamples
}

type Stats struct {
	TotalRequests uint64            `json:"total_requests"`
	TotalErrors   uint64            `json:"total_errors"`
	ErrorRate     float64           `json:"error_rate"`
	P50Latency    string            `json:"p50_latency"`
	P95Latency    string            `json:"p95_latency"`
	P99Latency    string            `json:"p99_latency"`
	StatusCounts  map[int]uint64    `json:"status_counts"`
	ClientUsage   map[string]uint64 `json:"client_usage"`
}

func (c *MetricsCollector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sorted := make([]time.Duration, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	errorRate := 0.0
	if c.totalRequests > 0 {
		errorRate = float64(c.totalErrors) / float64(c.totalRequests)
	}

	sc := make(map[int]uint64, len(c.statusCounts))
	for k, v := range c.statusCounts {
		sc[k] = v
	}
	cu := make(map[string]uint64, len(c.clientUsage))
	for k, v := range c.clientUsage {
		cu[k] = v
	}

	return Stats{
		TotalRequests: c.totalRequests,
		TotalErrors:   c.totalErrors,
		ErrorRate:     errorRate,
		P50Latency:    quantile(sorted, 0.50).String(),
		P95Latency:    quantile(sorted, 0.95).String(),
		P99Latency:    quantile(sorted, 0.99).String(),
		StatusCounts:  sc,
		ClientUsage:   cu,
	}
}

// quantile uses the nearest-rank method on sorted samples.
func quantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
