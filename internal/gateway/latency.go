package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker records monitor-publish-to-WS-fanout latency samples in a
// circular buffer and computes p50/p95/p99. Thread-safe.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64 // latency values in ms
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker holding the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(latencyMs float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = latencyMs
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// Percentiles returns p50, p95, p99 latency in milliseconds, or zeros when
// no samples have been recorded.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	n := lt.count
	if n == 0 {
		lt.mu.Unlock()
		return 0, 0, 0
	}

	sorted := make([]float64, n)
	if n == len(lt.samples) {
		// Full buffer: oldest sample sits at pos
		copy(sorted, lt.samples[lt.pos:])
		copy(sorted[n-lt.pos:], lt.samples[:lt.pos])
	} else {
		copy(sorted, lt.samples[:n])
	}
	lt.mu.Unlock()

	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Count returns the number of samples held (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile computes the p-th percentile (0.0-1.0) of a sorted slice using
// linear interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
